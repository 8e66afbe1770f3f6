package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/handlers/userctx"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := userctx.FromContext(r.Context())
		render.JSON(w, models.ProfileFromAccount(account))
	})
}

// Resolve {id} path value and check it is the authenticated account.
// Writes error response and returns false otherwise.
func ownAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
		return uuid.Nil, false
	}

	account, ok := userctx.FromContext(r.Context())
	if !ok || account.ID != id {
		render.ServiceError(w, "Access to another account's profile is forbidden", http.StatusForbidden)
		return uuid.Nil, false
	}

	return id, true
}

func handleGetProfile(s userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ownAccountID(w, r)
		if !ok {
			return
		}

		profile, err := s.GetProfile(r.Context(), id)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, profile)
	})
}

func handleUpdateProfile(s userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ownAccountID(w, r)
		if !ok {
			return
		}

		patch, err := render.Bind[models.ProfilePatch](w, r)
		if err != nil {
			return
		}

		profile, err := s.UpdateProfile(r.Context(), id, patch)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, profile)
	})
}
