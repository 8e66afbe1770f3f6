package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/service/audit"
	"github.com/nkiryanov/gopherauth/internal/service/validate"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenCodec interface {
	Issue(subject string) (models.IssuedToken, error)
	SubjectOf(token string) (string, error)
	TTL() time.Duration
}

type revocationRegistry interface {
	Revoke(token string)
	IsRevoked(token string) bool
}

type lockoutPolicy interface {
	RecordFailedAttempt(ctx context.Context, account models.Account) (models.Account, error)
	IsCurrentlyLocked(account models.Account) bool
	ClearOnSuccess(ctx context.Context, account models.Account) (models.Account, error)
}

type auditor interface {
	Record(ctx context.Context, event audit.Event, email string, details ...any)
}

type Config struct {
	// BcryptHasher with default cost if nil
	Hasher PasswordHasher

	// No-op logger if nil
	Logger logger.Logger

	// Audit records go to Logger if nil
	Auditor auditor

	// time.Now if nil
	Now func() time.Time
}

// Federated accounts get a username derived from email; tries before giving up on collisions
const usernameAttempts = 5

// Lookups of an external identity when concurrent logins race to create or link it
const resolveAttempts = 3

type AuthService struct {
	storage  repository.Storage
	codec    tokenCodec
	registry revocationRegistry
	policy   lockoutPolicy

	hasher  PasswordHasher
	logger  logger.Logger
	auditor auditor
	now     func() time.Time

	// Hash compared against on unknown emails, so both paths cost one bcrypt comparison
	dummyHash func() (string, error)
}

func NewService(
	cfg Config,
	storage repository.Storage,
	codec tokenCodec,
	registry revocationRegistry,
	policy lockoutPolicy,
) (*AuthService, error) {
	if storage == nil || codec == nil || registry == nil || policy == nil {
		return nil, errors.New("storage, codec, registry and policy must not be nil")
	}

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Auditor == nil {
		cfg.Auditor = audit.New(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	hasher := cfg.Hasher

	return &AuthService{
		storage:  storage,
		codec:    codec,
		registry: registry,
		policy:   policy,
		hasher:   hasher,
		logger:   cfg.Logger.With("component", "auth"),
		auditor:  cfg.Auditor,
		now:      cfg.Now,
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash("not-a-real-password")
		}),
	}, nil
}

// Create local account. No token is issued: caller has to login.
func (s *AuthService) Register(ctx context.Context, in models.Registration) (models.Profile, error) {
	in.Email = validate.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)

	if err := validate.Registration(in); err != nil {
		return models.Profile{}, err
	}

	// Cheap check before spending time on hashing; unique constraint is the real guard
	_, err := s.storage.Accounts().GetAccountByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return models.Profile{}, apperrors.ErrDuplicateEmail
	case !errors.Is(err, apperrors.ErrAccountNotFound):
		return models.Profile{}, fmt.Errorf("error while checking email. Err: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.Profile{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	account, err := s.storage.Accounts().CreateAccount(ctx, models.AccountFromRegistration(in, hash, s.now()))
	if err != nil {
		return models.Profile{}, err
	}

	s.auditor.Record(ctx, audit.EventRegistered, account.Email, "account_id", account.ID)
	return models.ProfileFromAccount(account), nil
}

// Authenticate with email and password.
// Unknown email, disabled account and wrong password all fail with apperrors.ErrInvalidCredentials.
// Email verification is not required.
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.LoginResult, error) {
	email = validate.NormalizeEmail(email)

	account, err := s.storage.Accounts().GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		s.burnComparison(password)
		s.auditor.Record(ctx, audit.EventLoginFailed, email, "reason", "unknown_email")
		return models.LoginResult{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.LoginResult{}, fmt.Errorf("error while loading account. Err: %w", err)
	}

	if !account.Enabled {
		s.burnComparison(password)
		s.auditor.Record(ctx, audit.EventLoginFailed, email, "reason", "disabled")
		return models.LoginResult{}, apperrors.ErrInvalidCredentials
	}

	if s.policy.IsCurrentlyLocked(account) {
		s.auditor.Record(ctx, audit.EventLoginFailed, email, "reason", "locked", "locked_until", account.LockedUntil)
		return models.LoginResult{}, fmt.Errorf("%w until %s", apperrors.ErrAccountLocked, account.LockedUntil.Format(time.RFC3339))
	}

	// Accounts created by an identity provider have no password to check
	if account.PasswordHash == "" {
		s.burnComparison(password)
		s.auditor.Record(ctx, audit.EventLoginFailed, email, "reason", "no_password")
		return models.LoginResult{}, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return models.LoginResult{}, s.failAttempt(ctx, account)
	}

	account, err = s.policy.ClearOnSuccess(ctx, account)
	if err != nil {
		return models.LoginResult{}, err
	}

	return s.issue(ctx, account, audit.EventLoginSucceeded)
}

// Record failed attempt and pick the error to return.
// Recording must not depend on the caller staying connected.
func (s *AuthService) failAttempt(ctx context.Context, account models.Account) error {
	updated, err := s.policy.RecordFailedAttempt(context.WithoutCancel(ctx), account)
	if err != nil {
		s.logger.Error("Failed attempt not recorded", "account_id", account.ID, "error", err)
		return err
	}

	s.auditor.Record(ctx, audit.EventLoginFailed, account.Email, "reason", "bad_password", "attempts", updated.FailedLoginAttempts)

	if s.policy.IsCurrentlyLocked(updated) {
		s.auditor.Record(ctx, audit.EventAccountLocked, account.Email, "attempts", updated.FailedLoginAttempts, "locked_until", updated.LockedUntil)
		return fmt.Errorf("%w until %s", apperrors.ErrAccountLocked, updated.LockedUntil.Format(time.RFC3339))
	}

	return apperrors.ErrInvalidCredentials
}

// Spend the same time a real comparison would
func (s *AuthService) burnComparison(password string) {
	hash, err := s.dummyHash()
	if err != nil {
		s.logger.Error("Dummy hash not available", "error", err)
		return
	}
	_ = s.hasher.Compare(hash, password)
}

// Revoke token. Revoking the same token twice is fine.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.ErrNoTokenProvided
	}

	s.registry.Revoke(token)

	// Subject is for audit only; revocation above does not depend on it
	email, _ := s.codec.SubjectOf(token)
	s.auditor.Record(ctx, audit.EventLogout, email)

	return nil
}

// Authenticate resolves bearer token to account: revoked first, then signature and expiry, then account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, apperrors.ErrNoTokenProvided
	}

	if s.registry.IsRevoked(token) {
		return models.Account{}, apperrors.ErrTokenRevoked
	}

	email, err := s.codec.SubjectOf(token)
	if err != nil {
		return models.Account{}, err
	}

	account, err := s.storage.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		return models.Account{}, err
	}

	if !account.Enabled {
		return models.Account{}, apperrors.ErrAccountDisabled
	}

	return account, nil
}

// Login with identity verified by an external provider.
// Known identity logs in; unknown identity is linked to the account with the same email or gets a new account.
// Lock state and password are not checked: the provider already authenticated the user.
func (s *AuthService) FederatedLogin(ctx context.Context, id models.FederatedIdentity) (models.LoginResult, error) {
	id.Email = validate.NormalizeEmail(id.Email)
	if err := validate.FederatedIdentity(id); err != nil {
		return models.LoginResult{}, err
	}

	var account models.Account
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		for range resolveAttempts {
			// Each try runs in its own savepoint, so a lost race does not abort the transaction
			err = tx.InTx(ctx, func(sp repository.Storage) error {
				account, err = s.resolveIdentity(ctx, sp, id)
				return err
			})

			// Concurrent login created or linked the identity first; look it up again
			if !errors.Is(err, apperrors.ErrDuplicateEmail) && !errors.Is(err, apperrors.ErrIdentityLinked) {
				return err
			}
		}
		return err
	})
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("error while resolving external identity. Err: %w", err)
	}

	if !account.Enabled {
		return models.LoginResult{}, apperrors.ErrAccountDisabled
	}

	account, err = s.policy.ClearOnSuccess(ctx, account)
	if err != nil {
		return models.LoginResult{}, err
	}

	return s.issue(ctx, account, audit.EventFederatedLogin, "provider", id.Provider)
}

// Find account by identity, then by email (and link it), else create one
func (s *AuthService) resolveIdentity(ctx context.Context, tx repository.Storage, id models.FederatedIdentity) (models.Account, error) {
	repo := tx.Accounts()

	account, err := repo.GetAccountByProvider(ctx, id.Provider, id.Subject)
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		return account, err
	}

	account, err = repo.GetAccountByEmail(ctx, id.Email)
	switch {
	case err == nil:
		return repo.LinkProvider(ctx, account.ID, id.Provider, id.Subject)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return s.createFederated(ctx, tx, id)
	default:
		return models.Account{}, err
	}
}

// Create account for new identity. Each try runs in its own savepoint, so a username
// collision does not abort the surrounding transaction.
func (s *AuthService) createFederated(ctx context.Context, tx repository.Storage, id models.FederatedIdentity) (models.Account, error) {
	base := usernameFromEmail(id.Email)

	var created models.Account
	var err error
	for i := range usernameAttempts {
		username := base
		if i > 0 {
			username = fmt.Sprintf("%s%04d", base, rand.IntN(10000))
		}

		err = tx.InTx(ctx, func(sp repository.Storage) error {
			created, err = sp.Accounts().CreateAccount(ctx, models.AccountFromIdentity(id, username, s.now()))
			return err
		})
		if !errors.Is(err, apperrors.ErrDuplicateUsername) {
			return created, err
		}
	}

	return created, err
}

// Letters and digits of email local part, fitting username rules
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range local {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == 16 {
			break
		}
	}

	name := b.String()
	if len(name) < 3 {
		name = "user" + name
	}
	return name
}

func (s *AuthService) issue(ctx context.Context, account models.Account, event audit.Event, details ...any) (models.LoginResult, error) {
	token, err := s.codec.Issue(account.Email)
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	s.auditor.Record(ctx, event, account.Email, append([]any{"account_id", account.ID}, details...)...)

	return models.LoginResult{
		Token:     token,
		TokenType: models.TokenTypeBearer,
		ExpiresIn: s.codec.TTL(),
		Profile:   models.ProfileFromAccount(account),
	}, nil
}
