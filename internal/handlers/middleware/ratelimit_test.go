package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("quota per minute", func(t *testing.T) {
		now := start
		l := NewRateLimiter(3, func() time.Time { return now })

		for i := range 3 {
			ok, _ := l.Allow("203.0.113.7")
			require.True(t, ok, "request %d within quota", i+1)
		}

		ok, retry := l.Allow("203.0.113.7")
		require.False(t, ok, "4th request over quota")
		require.Equal(t, 20*time.Second, retry)

		ok, _ = l.Allow("198.51.100.1")
		require.True(t, ok, "other client has its own quota")

		now = now.Add(20 * time.Second)
		ok, _ = l.Allow("203.0.113.7")
		require.True(t, ok, "one token refilled")
	})

	t.Run("middleware", func(t *testing.T) {
		l := NewRateLimiter(2, func() time.Time { return start })
		h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		codes := make([]int, 0, 3)
		var retryAfter string
		for range 3 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
			codes = append(codes, w.Code)
			retryAfter = w.Header().Get("Retry-After")
		}

		require.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
		require.Equal(t, "30", retryAfter)
	})

	t.Run("disabled", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
		var nilLimiter *RateLimiter

		require.NotNil(t, NewRateLimiter(0, nil).Middleware(next))
		require.NotNil(t, nilLimiter.Middleware(next))
	})

	t.Run("concurrent clients", func(t *testing.T) {
		l := NewRateLimiter(5, func() time.Time { return start })

		var mu sync.Mutex
		allowed := 0
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := l.Allow("203.0.113.7"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 5, allowed, "exactly the quota is let through")
	})

	t.Run("sweep idle clients", func(t *testing.T) {
		now := start
		l := NewRateLimiter(5, func() time.Time { return now })
		l.Allow("203.0.113.7")

		now = now.Add(5 * time.Minute)
		l.Allow("198.51.100.1")

		now = now.Add(6 * time.Minute)
		require.Equal(t, 1, l.SweepExpired(), "only the client idle for longer than timeout is dropped")
		require.Equal(t, 1, l.visitors.Size())
	})
}
