package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/service/auth/lockout"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultTokenTTL      = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultRateLimit     = 10
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	// Accounts are kept in memory if empty
	DatabaseDSN string

	// Secret key
	// Access tokens are signed with it, so it has to be set and kept secret
	SecretKey string

	// Environment
	Environment string

	// Access token lifetime
	TokenTTL time.Duration

	// Failed logins in a row that lock the account and for how long
	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	// How often revoked tokens and idle rate limit buckets are dropped
	SweepInterval time.Duration

	// Requests per minute allowed to one client on auth endpoints; 0 disables limiting
	RateLimit int

	// Take client address from X-Forwarded-For and X-Real-IP.
	// Enable only behind a proxy that overwrites them, clients can set any value otherwise.
	TrustProxyHeaders bool

	BcryptCost int
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		TokenTTL:           defaultTokenTTL,
		LockoutMaxAttempts: lockout.DefaultMaxAttempts,
		LockoutDuration:    lockout.DefaultLockDuration,
		SweepInterval:      defaultSweepInterval,
		RateLimit:          defaultRateLimit,
		BcryptCost:         bcrypt.DefaultCost,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":               setString(&c.ListenAddr),
		"DATABASE_URI":              setString(&c.DatabaseDSN),
		"SECRET_KEY":                setString(&c.SecretKey),
		"LOG_LEVEL":                 setString(&c.LogLevel),
		"ENVIRONMENT":               setString(&c.Environment),
		"TOKEN_TTL":                 setDuration(&c.TokenTTL),
		"LOCKOUT_MAX_ATTEMPTS":      setInt(&c.LockoutMaxAttempts),
		"LOCKOUT_DURATION":          setDuration(&c.LockoutDuration),
		"REVOCATION_SWEEP_INTERVAL": setDuration(&c.SweepInterval),
		"RATE_LIMIT_PER_MINUTE":     setInt(&c.RateLimit),
		"TRUST_PROXY_HEADERS":       setBool(&c.TrustProxyHeaders),
		"BCRYPT_COST":               setInt(&c.BcryptCost),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gopherauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string; in-memory storage if empty")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Access token lifetime")
	fs.IntVar(&c.LockoutMaxAttempts, "lockout-attempts", c.LockoutMaxAttempts, "Failed logins in a row that lock the account")
	fs.DurationVar(&c.LockoutDuration, "lockout-duration", c.LockoutDuration, "How long a locked account stays locked")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "How often revoked tokens are swept")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Auth requests per minute per client, 0 to disable")
	fs.BoolVar(&c.TrustProxyHeaders, "trust-proxy", c.TrustProxyHeaders, "Take client address from proxy headers")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt cost of password hashes")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.LockoutMaxAttempts <= 0 || c.LockoutDuration <= 0 {
		errs = append(errs, errors.New("lockout attempts and duration must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}

	return errors.Join(errs...)
}
