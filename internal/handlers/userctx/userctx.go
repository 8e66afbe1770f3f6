package userctx

import (
	"context"

	"github.com/nkiryanov/gopherauth/internal/models"
)

type ctxKey struct{}

// Create a new context with the authenticated account
func New(ctx context.Context, a models.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// Extract the account from the context
func FromContext(ctx context.Context) (models.Account, bool) {
	a, ok := ctx.Value(ctxKey{}).(models.Account)
	return a, ok
}
