package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/middleware"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

type loginResponse struct {
	AccessToken string         `json:"accessToken"`
	TokenType   string         `json:"tokenType"`
	ExpiresIn   int64          `json:"expiresIn"`
	User        models.Profile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func handleRegister(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.Bind[models.Registration](w, r)
		if err != nil {
			return
		}

		profile, err := s.Register(r.Context(), data)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSONWithStatus(w, profile, http.StatusCreated)
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := s.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, loginResponse{
			AccessToken: res.Token.Value,
			TokenType:   res.TokenType,
			ExpiresIn:   int64(res.ExpiresIn.Seconds()),
			User:        res.Profile,
		})
	})
}

// Logout does not go through the auth gate: an expired or already revoked token may still be logged out
func handleLogout(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.Logout(r.Context(), middleware.BearerToken(r))
		switch {
		case err == nil:
			render.JSON(w, messageResponse{Message: "Logged out successfully"})
		case errors.Is(err, apperrors.ErrNoTokenProvided):
			render.ServiceError(w, "Authorization token is required", http.StatusBadRequest)
		default:
			renderError(w, err, l)
		}
	})
}

// Render service error and log it if it is not an expected one
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	if !render.Error(w, err) {
		l.Error("Request failed", "error", err)
	}
}
