package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// SlowTileThreshold is the request duration, timed by Logger around the
// whole handler, above which a request is logged at WARN instead of INFO,
// so slow pyramid reads or resample passes show up without grepping every
// request line.
const SlowTileThreshold = 100 * time.Millisecond

// Logger wraps each request with a slog line carrying the request ID
// set by RequestID, so a slow or failing tile fetch can be traced back
// through the coordinator and catalog logs by that ID alone.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		requestID := GetRequestID(r.Context())

		if duration > SlowTileThreshold {
			slog.Warn("slow tile request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", ww.Status(),
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		} else {
			slog.Info("tile request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
			)
		}
	})
}

// Recoverer recovers from panics in a tile handler and returns a 500
// instead of crashing the server process.
func Recoverer(next http.Handler) http.Handler {
	return middleware.Recoverer(next)
}

// RealIP sets RemoteAddr from X-Forwarded-For/X-Real-IP, for rate
// limiting and logging behind a load balancer or CDN.
func RealIP(next http.Handler) http.Handler {
	return middleware.RealIP(next)
}

// Timeout bounds how long a single tile request may run: chunk reads,
// resampling, and PNG encoding all share this deadline via the
// request's context.
func Timeout(timeout time.Duration) func(next http.Handler) http.Handler {
	return middleware.Timeout(timeout)
}

// ContentType sets the response Content-Type unconditionally, used on
// the /tiles sub-router where every successful response is a PNG.
func ContentType(contentType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds the baseline headers expected of a public tile
// endpoint served over HTTPS behind a CDN.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
