package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create account
	// If email or username is taken has to return apperrors.ErrDuplicateEmail or apperrors.ErrDuplicateUsername,
	// apperrors.ErrIdentityLinked if another account holds the same external identity
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by id, email or external identity
	// If account not found must return apperrors.ErrAccountNotFound
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	GetAccountByProvider(ctx context.Context, provider string, providerID string) (models.Account, error)

	// Increment failed login counter in place and lock the account until lockUntil
	// when the incremented counter reaches threshold.
	// Must be atomic per account: concurrent calls never lose an increment.
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (models.Account, error)

	// Zero failed counter, clear lock and stamp last login time
	ResetLoginState(ctx context.Context, id uuid.UUID, loginAt time.Time) (models.Account, error)

	// Apply non-nil patch fields only
	// If new username is taken has to return apperrors.ErrDuplicateUsername
	UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfilePatch, updatedAt time.Time) (models.Account, error)

	// Attach external identity and mark email verified
	// Returns apperrors.ErrIdentityLinked if another account holds the identity
	LinkProvider(ctx context.Context, id uuid.UUID, provider string, providerID string) (models.Account, error)
}

type Storage interface {
	Accounts() AccountRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(s Storage) error) error
}
