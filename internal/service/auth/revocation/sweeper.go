package revocation

import (
	"context"
	"time"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

type sweepable interface {
	SweepExpired() int
}

// Sweeper periodically drops expired entries of the registry, or of anything else that can sweep itself
type Sweeper struct {
	registry sweepable
	interval time.Duration
	logger   logger.Logger
}

func NewSweeper(registry sweepable, interval time.Duration, l logger.Logger) *Sweeper {
	return &Sweeper{registry: registry, interval: interval, logger: l}
}

// Run sweeps on every tick until ctx is done. Returned channel is closed when sweeper stopped.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval)

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				removed := s.registry.SweepExpired()
				s.logger.Debug("Sweeper tick", "removed", removed)
			}
		}
	}()

	return stopped
}
