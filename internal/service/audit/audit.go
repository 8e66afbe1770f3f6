package audit

import (
	"context"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

type Event string

const (
	EventRegistered     Event = "USER_REGISTERED"
	EventLoginSucceeded Event = "LOGIN_SUCCESS"
	EventLoginFailed    Event = "LOGIN_FAILED"
	EventAccountLocked  Event = "ACCOUNT_LOCKED"
	EventLogout         Event = "USER_LOGOUT"
	EventFederatedLogin Event = "OAUTH2_LOGIN"
)

// Client that made the request
type Client struct {
	IP        string
	UserAgent string
}

type ctxKey struct{}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClientFromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(ctxKey{}).(Client)
	return c, ok
}

// Auditor writes security events to a dedicated logger group
type Auditor struct {
	logger logger.Logger
}

func New(l logger.Logger) *Auditor {
	return &Auditor{logger: l.With("component", "audit")}
}

// Record event about account identified by email. details are extra key-value pairs.
func (a *Auditor) Record(ctx context.Context, event Event, email string, details ...any) {
	args := []any{"event", string(event), "email", email}
	if c, ok := ClientFromContext(ctx); ok {
		args = append(args, "ip", c.IP, "user_agent", c.UserAgent)
	}
	args = append(args, details...)

	switch event {
	case EventLoginFailed, EventAccountLocked:
		a.logger.Warn("security event", args...)
	default:
		a.logger.Info("security event", args...)
	}
}
