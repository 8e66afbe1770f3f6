package revocation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

type sweepCounter struct {
	calls atomic.Int32
}

func (s *sweepCounter) SweepExpired() int {
	s.calls.Add(1)
	return 0
}

func TestSweeper_Run(t *testing.T) {
	t.Parallel()

	registry := &sweepCounter{}
	s := NewSweeper(registry, 5*time.Millisecond, logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(t.Context())
	stopped := s.Run(ctx)

	require.Eventually(t, func() bool {
		return registry.calls.Load() >= 2
	}, time.Second, time.Millisecond, "sweeper should tick repeatedly")

	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
