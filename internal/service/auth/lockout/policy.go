package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 24 * time.Hour
)

type Config struct {
	// Failed attempts in a row that lock the account
	MaxAttempts int

	// How long the lock lasts
	LockDuration time.Duration
}

// Account state writes the policy needs
type counterStore interface {
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (models.Account, error)
	ResetLoginState(ctx context.Context, id uuid.UUID, loginAt time.Time) (models.Account, error)
}

type Option func(*Policy)

func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		p.now = now
	}
}

// Policy turns failed login history into lock decisions.
// The store must not be bound to a caller transaction: recorded failures have to commit on their own.
type Policy struct {
	store        counterStore
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

func New(cfg Config, store counterStore, opts ...Option) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}

	p := &Policy{
		store:        store,
		maxAttempts:  cfg.MaxAttempts,
		lockDuration: cfg.LockDuration,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) MaxAttempts() int            { return p.maxAttempts }
func (p *Policy) LockDuration() time.Duration { return p.lockDuration }

// Count a failed attempt and lock the account once the threshold is reached.
// Returns the account as stored after the increment.
func (p *Policy) RecordFailedAttempt(ctx context.Context, account models.Account) (models.Account, error) {
	updated, err := p.store.IncrementFailedAttempts(ctx, account.ID, p.maxAttempts, p.now().Add(p.lockDuration))
	if err != nil {
		return account, fmt.Errorf("error while recording failed attempt. Err: %w", err)
	}
	return updated, nil
}

// Locked with a lock that has not lapsed yet
func (p *Policy) IsCurrentlyLocked(account models.Account) bool {
	return account.Locked && account.LockedUntil != nil && account.LockedUntil.After(p.now())
}

// Forget failures after a successful authentication
func (p *Policy) ClearOnSuccess(ctx context.Context, account models.Account) (models.Account, error) {
	updated, err := p.store.ResetLoginState(ctx, account.ID, p.now())
	if err != nil {
		return account, fmt.Errorf("error while clearing login state. Err: %w", err)
	}
	return updated, nil
}
