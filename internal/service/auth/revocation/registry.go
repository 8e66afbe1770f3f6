package revocation

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

type expiryReader interface {
	// Expiry of the token with verified signature, expired tokens included
	ExpiryOf(token string) (time.Time, error)

	// Longest validity a freshly issued token may have
	TTL() time.Duration
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry is a concurrent set of tokens rejected before their natural expiry.
// Each entry remembers when it may be forgotten.
type Registry struct {
	entries *xsync.MapOf[string, time.Time]
	codec   expiryReader
	logger  logger.Logger
	now     func() time.Time
}

func NewRegistry(codec expiryReader, l logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries: xsync.NewMapOf[string, time.Time](),
		codec:   codec,
		logger:  l,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke token. Idempotent.
// A token whose expiry can not be read is revoked anyway for the longest validity we ever issue.
func (r *Registry) Revoke(token string) {
	if token == "" {
		return
	}

	now := r.now()
	forgetAt, err := r.codec.ExpiryOf(token)
	switch {
	case err != nil:
		r.logger.Debug("Revoking unreadable token", "error", err)
		forgetAt = now.Add(r.codec.TTL())
	case !forgetAt.After(now):
		r.logger.Debug("Token already expired, nothing to revoke", "expired_at", forgetAt)
		return
	}

	r.entries.Store(token, forgetAt)
}

// Empty token is never revoked: absence is handled by callers
func (r *Registry) IsRevoked(token string) bool {
	if token == "" {
		return false
	}
	_, ok := r.entries.Load(token)
	return ok
}

// Remove entries whose tokens have expired. Returns number of removed entries.
func (r *Registry) SweepExpired() int {
	now := r.now()
	removed := 0

	r.entries.Range(func(token string, forgetAt time.Time) bool {
		if !forgetAt.After(now) {
			r.entries.Delete(token)
			removed++
		}
		return true
	})

	return removed
}

func (r *Registry) Len() int {
	return r.entries.Size()
}
