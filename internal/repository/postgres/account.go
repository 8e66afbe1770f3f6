package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

// Constraint names from migrations
const (
	emailConstraint    = "accounts_email_key"
	usernameConstraint = "accounts_username_key"
	providerConstraint = "accounts_provider_key"
)

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `id, created_at, updated_at,
	email, username, password_hash,
	first_name, last_name, phone, avatar_url, locale, timezone,
	email_verified, account_enabled,
	account_locked, locked_until, failed_login_attempts, last_login_at,
	terms_accepted_at, privacy_accepted_at,
	provider, provider_id`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (` + accountColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
RETURNING ` + accountColumns

func (r *AccountRepo) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	return r.queryOne(ctx, createAccount,
		a.ID, a.CreatedAt, a.UpdatedAt,
		a.Email, a.Username, a.PasswordHash,
		a.FirstName, a.LastName, a.Phone, a.AvatarURL, a.Locale, a.Timezone,
		a.EmailVerified, a.Enabled,
		a.Locked, a.LockedUntil, a.FailedLoginAttempts, a.LastLoginAt,
		a.TermsAcceptedAt, a.PrivacyAcceptedAt,
		a.Provider, a.ProviderID,
	)
}

const getAccountByID = `-- name: GetAccountByID
SELECT ` + accountColumns + ` FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return r.queryOne(ctx, getAccountByID, id)
}

const getAccountByEmail = `-- name: GetAccountByEmail
SELECT ` + accountColumns + ` FROM accounts
WHERE email = $1
`

func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.queryOne(ctx, getAccountByEmail, email)
}

const getAccountByProvider = `-- name: GetAccountByProvider
SELECT ` + accountColumns + ` FROM accounts
WHERE provider = $1 AND provider_id = $2 AND provider <> ''
`

func (r *AccountRepo) GetAccountByProvider(ctx context.Context, provider string, providerID string) (models.Account, error) {
	return r.queryOne(ctx, getAccountByProvider, provider, providerID)
}

// Counter is incremented in place, so the row lock taken by UPDATE serializes concurrent failures.
// CASE branches see the value before increment.
const incrementFailedAttempts = `-- name: IncrementFailedAttempts
UPDATE accounts SET
	failed_login_attempts = failed_login_attempts + 1,
	account_locked = CASE WHEN failed_login_attempts + 1 >= $2 THEN TRUE ELSE account_locked END,
	locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
	updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) IncrementFailedAttempts(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (models.Account, error) {
	return r.queryOne(ctx, incrementFailedAttempts, id, threshold, lockUntil)
}

const resetLoginState = `-- name: ResetLoginState
UPDATE accounts SET
	failed_login_attempts = 0,
	account_locked = FALSE,
	locked_until = NULL,
	last_login_at = $2,
	updated_at = $2
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) ResetLoginState(ctx context.Context, id uuid.UUID, loginAt time.Time) (models.Account, error) {
	return r.queryOne(ctx, resetLoginState, id, loginAt)
}

const updateProfile = `-- name: UpdateProfile
UPDATE accounts SET
	username = COALESCE($2, username),
	first_name = COALESCE($3, first_name),
	last_name = COALESCE($4, last_name),
	phone = COALESCE($5, phone),
	avatar_url = COALESCE($6, avatar_url),
	locale = COALESCE($7, locale),
	timezone = COALESCE($8, timezone),
	updated_at = $9
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfilePatch, updatedAt time.Time) (models.Account, error) {
	return r.queryOne(ctx, updateProfile,
		id, p.Username, p.FirstName, p.LastName, p.Phone, p.AvatarURL, p.Locale, p.Timezone, updatedAt,
	)
}

const linkProvider = `-- name: LinkProvider
UPDATE accounts SET
	provider = $2,
	provider_id = $3,
	email_verified = TRUE,
	updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) LinkProvider(ctx context.Context, id uuid.UUID, provider string, providerID string) (models.Account, error) {
	return r.queryOne(ctx, linkProvider, id, provider, providerID)
}

func (r *AccountRepo) queryOne(ctx context.Context, sql string, args ...any) (models.Account, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return models.Account{}, mapError(err)
	}

	account, err := pgx.CollectOneRow(rows, rowToAccount)
	if err != nil {
		return models.Account{}, mapError(err)
	}

	return account, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrAccountNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case emailConstraint:
			return apperrors.ErrDuplicateEmail
		case usernameConstraint:
			return apperrors.ErrDuplicateUsername
		case providerConstraint:
			return apperrors.ErrIdentityLinked
		default:
			return fmt.Errorf("db error: %w", err)
		}
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt,
		&a.Email, &a.Username, &a.PasswordHash,
		&a.FirstName, &a.LastName, &a.Phone, &a.AvatarURL, &a.Locale, &a.Timezone,
		&a.EmailVerified, &a.Enabled,
		&a.Locked, &a.LockedUntil, &a.FailedLoginAttempts, &a.LastLoginAt,
		&a.TermsAcceptedAt, &a.PrivacyAcceptedAt,
		&a.Provider, &a.ProviderID,
	)
	return a, err
}
