package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/handlers/userctx"
	"github.com/nkiryanov/gopherauth/internal/models"
)

type authenticator interface {
	// Resolve bearer token to the account it was issued for
	Authenticate(ctx context.Context, token string) (models.Account, error)
}

// BearerToken returns token from 'Authorization: Bearer <token>' header or empty string
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, models.TokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware lets through only requests with a valid, not revoked token of an enabled account.
// Authenticated account is available with userctx.FromContext.
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := a.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				// Token subject that no longer exists is an authentication failure, not a missing resource
				if errors.Is(err, apperrors.ErrAccountNotFound) {
					err = apperrors.ErrInvalidCredentials
				}
				render.Error(w, err)
				return
			}

			ctx := userctx.New(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
