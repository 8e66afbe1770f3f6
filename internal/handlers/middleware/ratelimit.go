package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/nkiryanov/gopherauth/internal/handlers/render"
)

// Buckets of clients not seen for this long are dropped by SweepExpired
const idleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter allows every client IP a number of requests per minute.
// The whole quota is available as a burst.
type RateLimiter struct {
	perMinute int
	visitors  *xsync.MapOf[string, *visitor]
	now       func() time.Time
}

func NewRateLimiter(perMinute int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		perMinute: perMinute,
		visitors:  xsync.NewMapOf[string, *visitor](),
		now:       now,
	}
}

// Allow reports whether client may make a request now and when it may retry otherwise
func (l *RateLimiter) Allow(ip string) (bool, time.Duration) {
	now := l.now()

	v, _ := l.visitors.LoadOrCompute(ip, func() *visitor {
		return &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
	})
	v.lastSeen.Store(now.UnixNano())

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and Retry-After header.
// Non positive limit disables limiting.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.perMinute <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			render.ServiceError(w, "Too many requests, please try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Drop buckets of idle clients. Returns number of removed buckets.
func (l *RateLimiter) SweepExpired() int {
	cutoff := l.now().Add(-idleTimeout).UnixNano()
	removed := 0

	l.visitors.Range(func(ip string, v *visitor) bool {
		if v.lastSeen.Load() < cutoff {
			l.visitors.Delete(ip)
			removed++
		}
		return true
	})

	return removed
}
