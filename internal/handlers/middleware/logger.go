package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/gopherauth/internal/service/audit"
)

type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// statusRecorder remembers what the handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.size += n
	return n, err
}

// Responses worth attention: server failures, lock outs and throttled clients
func noteworthy(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusLocked ||
		status == http.StatusTooManyRequests
}

// LoggerMiddleware logs every request with the client from request context.
// Noteworthy responses are logged with warn level.
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			var userAgent string
			if c, ok := audit.ClientFromContext(r.Context()); ok {
				userAgent = c.UserAgent
			}

			log := l.Info
			if noteworthy(rec.status) {
				log = l.Warn
			}

			log(
				"HTTP request",
				"method", r.Method,
				"uri", r.RequestURI,
				"ip", clientIP(r),
				"user_agent", userAgent,
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
			)
		})
	}
}
