package tokencodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultSigningMethod = "HS256"
)

// Token codec with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetime
	// If not set than default is used
	TTL time.Duration
}

type Option func(*Codec)

// Use custom clock, both for issuing and validating
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec issues and parses signed bearer tokens. It holds no state besides its config.
type Codec struct {
	key []byte
	alg jwt.SigningMethod
	ttl time.Duration
	now func() time.Time
}

func New(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q, HMAC expected", cfg.Alg)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	c := &Codec{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttl: cfg.TTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Token validity window
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signed token for subject valid for TTL starting now
func (c *Codec) Issue(subject string) (models.IssuedToken, error) {
	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)

	token := jwt.NewWithClaims(c.alg, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Report whether token is signed by us, not expired and issued for expectedSubject
func (c *Codec) Validate(token string, expectedSubject string) bool {
	subject, err := c.SubjectOf(token)
	return err == nil && subject == expectedSubject
}

// Subject of a verified, unexpired token
func (c *Codec) SubjectOf(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Expiry of a token with verified signature. Expired tokens are accepted here.
func (c *Codec) ExpiryOf(token string) (time.Time, error) {
	claims, err := c.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, apperrors.ErrMalformedToken
	}
	return claims.ExpiresAt.Time, nil
}

func (c *Codec) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, apperrors.ErrNoTokenProvided
	}

	claims := &jwt.RegisteredClaims{}
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}, opts...)

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return c.key, nil }, opts...)
	if err != nil {
		return nil, classify(err)
	}

	return claims, nil
}

// Map jwt errors to the three caller visible kinds
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrMalformedToken, err)
	}
}
