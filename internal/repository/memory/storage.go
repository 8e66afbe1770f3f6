package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
)

// Storage keeps accounts in process memory.
// Every method holds the mutex for its whole read-modify-write, so per account updates are atomic.
// InTx gives no isolation or rollback: fn runs against the same store.
type Storage struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
}

func NewStorage() *Storage {
	return &Storage{accounts: make(map[uuid.UUID]models.Account)}
}

func (s *Storage) Accounts() repository.AccountRepo {
	return s
}

func (s *Storage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}

func (s *Storage) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		switch {
		case existing.Email == a.Email:
			return models.Account{}, apperrors.ErrDuplicateEmail
		case existing.Username == a.Username:
			return models.Account{}, apperrors.ErrDuplicateUsername
		case sameIdentity(existing, a.Provider, a.ProviderID):
			return models.Account{}, apperrors.ErrIdentityLinked
		}
	}

	s.accounts[a.ID] = a
	return a, nil
}

func (s *Storage) GetAccountByID(_ context.Context, id uuid.UUID) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, apperrors.ErrAccountNotFound
	}
	return a, nil
}

func (s *Storage) GetAccountByEmail(_ context.Context, email string) (models.Account, error) {
	return s.find(func(a models.Account) bool { return a.Email == email })
}

func (s *Storage) GetAccountByProvider(_ context.Context, provider string, providerID string) (models.Account, error) {
	if provider == "" {
		return models.Account{}, apperrors.ErrAccountNotFound
	}
	return s.find(func(a models.Account) bool {
		return a.Provider == provider && a.ProviderID == providerID
	})
}

func (s *Storage) IncrementFailedAttempts(_ context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (models.Account, error) {
	return s.update(id, func(a *models.Account) error {
		a.FailedLoginAttempts++
		if a.FailedLoginAttempts >= threshold {
			a.Locked = true
			a.LockedUntil = &lockUntil
		}
		a.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Storage) ResetLoginState(_ context.Context, id uuid.UUID, loginAt time.Time) (models.Account, error) {
	return s.update(id, func(a *models.Account) error {
		a.FailedLoginAttempts = 0
		a.Locked = false
		a.LockedUntil = nil
		a.LastLoginAt = &loginAt
		a.UpdatedAt = loginAt
		return nil
	})
}

func (s *Storage) UpdateProfile(_ context.Context, id uuid.UUID, patch models.ProfilePatch, updatedAt time.Time) (models.Account, error) {
	return s.update(id, func(a *models.Account) error {
		if patch.Username != nil && *patch.Username != a.Username {
			for _, other := range s.accounts {
				if other.Username == *patch.Username {
					return apperrors.ErrDuplicateUsername
				}
			}
		}

		*a = models.ApplyPatch(*a, patch)
		a.UpdatedAt = updatedAt
		return nil
	})
}

func (s *Storage) LinkProvider(_ context.Context, id uuid.UUID, provider string, providerID string) (models.Account, error) {
	return s.update(id, func(a *models.Account) error {
		for _, other := range s.accounts {
			if other.ID != id && sameIdentity(other, provider, providerID) {
				return apperrors.ErrIdentityLinked
			}
		}

		a.Provider = provider
		a.ProviderID = providerID
		a.EmailVerified = true
		a.UpdatedAt = time.Now()
		return nil
	})
}

// Local accounts have no provider and never share an identity
func sameIdentity(a models.Account, provider string, providerID string) bool {
	return provider != "" && a.Provider == provider && a.ProviderID == providerID
}

func (s *Storage) find(match func(models.Account) bool) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, apperrors.ErrAccountNotFound
}

// Apply fn to a copy and store it only if fn succeeds
func (s *Storage) update(id uuid.UUID, fn func(a *models.Account) error) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, apperrors.ErrAccountNotFound
	}

	if err := fn(&a); err != nil {
		return models.Account{}, err
	}

	s.accounts[id] = a
	return a, nil
}
