package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/service/validate"
)

type UserService struct {
	storage repository.Storage
	now     func() time.Time
}

func NewService(storage repository.Storage, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}

	return &UserService{
		storage: storage,
		now:     now,
	}
}

func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (models.Profile, error) {
	account, err := s.storage.Accounts().GetAccountByID(ctx, id)
	if err != nil {
		return models.Profile{}, err
	}

	return models.ProfileFromAccount(account), nil
}

// Update profile fields present in patch. Email, password and lock state can't be changed here.
// Empty patch changes nothing and returns current profile.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfilePatch) (models.Profile, error) {
	if patch.IsEmpty() {
		return s.GetProfile(ctx, id)
	}

	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}

	if err := validate.ProfilePatch(patch); err != nil {
		return models.Profile{}, err
	}

	account, err := s.storage.Accounts().UpdateProfile(ctx, id, patch, s.now())
	if err != nil {
		return models.Profile{}, fmt.Errorf("can't update profile. Err: %w", err)
	}

	return models.ProfileFromAccount(account), nil
}
