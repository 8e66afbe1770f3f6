package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/gopherauth/internal/db"
	"github.com/nkiryanov/gopherauth/internal/handlers"
	"github.com/nkiryanov/gopherauth/internal/handlers/middleware"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/repository/memory"
	"github.com/nkiryanov/gopherauth/internal/repository/postgres"
	"github.com/nkiryanov/gopherauth/internal/service/audit"
	"github.com/nkiryanov/gopherauth/internal/service/auth"
	"github.com/nkiryanov/gopherauth/internal/service/auth/lockout"
	"github.com/nkiryanov/gopherauth/internal/service/auth/revocation"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokencodec"
	"github.com/nkiryanov/gopherauth/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger   logger.Logger
	sweepers []*revocation.Sweeper
	close    func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Accounts live in postgres if DSN is set, otherwise in memory
	var storage repository.Storage
	closeStorage := func() {}
	if c.DatabaseDSN != "" {
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		storage = postgres.NewStorage(pool)
		closeStorage = pool.Close
	} else {
		logger.Warn("Database is not configured, accounts are kept in memory")
		storage = memory.NewStorage()
	}

	// Initialize services
	codec, err := tokencodec.New(tokencodec.Config{SecretKey: c.SecretKey, TTL: c.TokenTTL})
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	registry := revocation.NewRegistry(codec, logger.With("component", "revocation"))
	policy := lockout.New(
		lockout.Config{MaxAttempts: c.LockoutMaxAttempts, LockDuration: c.LockoutDuration},
		storage.Accounts(),
	)
	logger.Info("Lockout policy", "max_attempts", policy.MaxAttempts(), "lock_duration", policy.LockDuration())

	authService, err := auth.NewService(
		auth.Config{
			Hasher:  auth.BcryptHasher{Cost: c.BcryptCost},
			Logger:  logger,
			Auditor: audit.New(logger),
		},
		storage,
		codec,
		registry,
		policy,
	)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(storage, nil)

	limiter := middleware.NewRateLimiter(c.RateLimit, nil)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewRouter(authService, userService, limiter, c.TrustProxyHeaders, logger),
		logger:     logger,
		sweepers: []*revocation.Sweeper{
			revocation.NewSweeper(registry, c.SweepInterval, logger.With("component", "revocation")),
			revocation.NewSweeper(limiter, c.SweepInterval, logger.With("component", "ratelimit")),
		},
		close: closeStorage,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	stopped := make([]<-chan struct{}, 0, len(s.sweepers))
	for _, sw := range s.sweepers {
		stopped = append(stopped, sw.Run(srvCtx))
	}

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	for _, done := range stopped {
		<-done
	}

	return err
}
