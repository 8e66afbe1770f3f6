package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
)

var mockColumns = []string{
	"id", "created_at", "updated_at",
	"email", "username", "password_hash",
	"first_name", "last_name", "phone", "avatar_url", "locale", "timezone",
	"email_verified", "account_enabled",
	"account_locked", "locked_until", "failed_login_attempts", "last_login_at",
	"terms_accepted_at", "privacy_accepted_at",
	"provider", "provider_id",
}

// Nullable timestamps are returned as NULL to keep mock scanning simple
func mockRow(id uuid.UUID, email string, attempts int, locked bool) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(mockColumns).AddRow(
		id, now, now,
		email, "alice", "hash",
		"Alice", "Liddell", "", "", "", "",
		false, true,
		locked, nil, attempts, nil,
		nil, nil,
		"", "",
	)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet(), "all expected queries must be executed")
		mock.Close()
	})
	return mock
}

func TestAccountRepo_Mock(t *testing.T) {
	t.Parallel()

	t.Run("create maps unique violations", func(t *testing.T) {
		tests := []struct {
			name       string
			constraint string
			expected   error
		}{
			{"email", emailConstraint, apperrors.ErrDuplicateEmail},
			{"username", usernameConstraint, apperrors.ErrDuplicateUsername},
			{"provider", providerConstraint, apperrors.ErrIdentityLinked},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mock := newMock(t)
				r := AccountRepo{DB: mock}

				mock.ExpectQuery("INSERT INTO accounts").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tt.constraint})

				_, err := r.CreateAccount(t.Context(), newAccount("a@x.com", "alice"))

				require.ErrorIs(t, err, tt.expected)
			})
		}
	})

	t.Run("get by email not found", func(t *testing.T) {
		mock := newMock(t)
		r := AccountRepo{DB: mock}

		mock.ExpectQuery("SELECT (.+) FROM accounts").
			WithArgs("nobody@x.com").
			WillReturnRows(pgxmock.NewRows(mockColumns))

		_, err := r.GetAccountByEmail(t.Context(), "nobody@x.com")

		require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	})

	t.Run("get by email ok", func(t *testing.T) {
		mock := newMock(t)
		r := AccountRepo{DB: mock}
		id := uuid.New()

		mock.ExpectQuery("SELECT (.+) FROM accounts").
			WithArgs("a@x.com").
			WillReturnRows(mockRow(id, "a@x.com", 0, false))

		got, err := r.GetAccountByEmail(t.Context(), "a@x.com")

		require.NoError(t, err)
		require.Equal(t, id, got.ID)
		require.Equal(t, "alice", got.Username)
		require.Nil(t, got.LockedUntil)
	})

	t.Run("increment passes threshold and lock time", func(t *testing.T) {
		mock := newMock(t)
		r := AccountRepo{DB: mock}
		id := uuid.New()
		lockUntil := time.Now().Add(time.Hour)

		mock.ExpectQuery("UPDATE accounts SET\\s+failed_login_attempts = failed_login_attempts \\+ 1").
			WithArgs(id, 5, lockUntil).
			WillReturnRows(mockRow(id, "a@x.com", 5, true))

		got, err := r.IncrementFailedAttempts(t.Context(), id, 5, lockUntil)

		require.NoError(t, err)
		require.Equal(t, 5, got.FailedLoginAttempts)
		require.True(t, got.Locked)
	})

	t.Run("driver error wrapped", func(t *testing.T) {
		mock := newMock(t)
		r := AccountRepo{DB: mock}
		boom := errors.New("connection reset")

		mock.ExpectQuery("UPDATE accounts SET").
			WillReturnError(boom)

		_, err := r.ResetLoginState(t.Context(), uuid.New(), time.Now())

		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "db error")
	})

	t.Run("in tx commits on success and rolls back on error", func(t *testing.T) {
		mock := newMock(t)
		s := NewStorage(mock)

		mock.ExpectBegin()
		mock.ExpectCommit()
		err := s.InTx(t.Context(), func(repository.Storage) error { return nil })
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectRollback()
		err = s.InTx(t.Context(), func(repository.Storage) error { return apperrors.ErrAccountNotFound })
		require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	})

	t.Run("update profile sends nil for untouched fields", func(t *testing.T) {
		mock := newMock(t)
		r := AccountRepo{DB: mock}
		id := uuid.New()
		name := "Alicia"
		var none *string

		mock.ExpectQuery("UPDATE accounts SET\\s+username = COALESCE").
			WithArgs(id, none, &name, none, none, none, none, none, pgxmock.AnyArg()).
			WillReturnRows(mockRow(id, "a@x.com", 0, false))

		_, err := r.UpdateProfile(t.Context(), id, models.ProfilePatch{FirstName: &name}, time.Now())

		require.NoError(t, err)
	})
}
