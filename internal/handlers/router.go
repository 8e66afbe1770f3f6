package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/handlers/middleware"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// NewRouter builds the HTTP API. limiter may be nil to serve auth endpoints without rate limiting.
// trustProxy makes client address come from proxy headers.
func NewRouter(
	authService authService,
	userService userService,
	limiter *middleware.RateLimiter,
	trustProxy bool,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)
	limited := limiter.Middleware

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", limited(handleRegister(authService, logger)))
	apiauth.Handle("POST /login", limited(handleLogin(authService, logger)))
	apiauth.Handle("POST /logout", limited(handleLogout(authService, logger)))

	apiusers := http.NewServeMux()
	apiusers.Handle("GET /me", withAuth(handleUserMe()))
	apiusers.Handle("GET /{id}/profile", withAuth(handleGetProfile(userService, logger)))
	apiusers.Handle("PUT /{id}/profile", withAuth(handleUpdateProfile(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/auth/", http.StripPrefix("/api/v1/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiusers))

	handler := chain(root,
		middleware.ClientMiddleware(trustProxy),
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Create account, no token issued
	// Has to return apperrors.ErrDuplicateEmail or apperrors.ErrDuplicateUsername if taken
	// Has to return *apperrors.ValidationError if input is invalid
	Register(ctx context.Context, in models.Registration) (models.Profile, error)

	// Login with email and password
	// Has to return apperrors.ErrInvalidCredentials for unknown email or wrong password
	// Has to return apperrors.ErrAccountLocked if account is locked
	Login(ctx context.Context, email string, password string) (models.LoginResult, error)

	// Revoke token
	// Has to return apperrors.ErrNoTokenProvided for empty token
	Logout(ctx context.Context, token string) error

	// Resolve bearer token to account
	Authenticate(ctx context.Context, token string) (models.Account, error)
}

type userService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (models.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfilePatch) (models.Profile, error)
}
