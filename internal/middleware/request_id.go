package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey namespaces context values stored by this package so they
// don't collide with keys set elsewhere in the request pipeline.
type ContextKey string

// RequestIDKey is the context key RequestID stores the request ID
// under.
const RequestIDKey ContextKey = "request_id"

// RequestID assigns each request a stable ID, reusing an inbound
// X-Request-ID header from an upstream proxy or CDN if present, and
// echoes it back on the response. Logger and any handler can then
// recover it with GetRequestID to correlate a single tile fetch across
// log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID set by RequestID, or "" if the
// middleware wasn't installed on this route.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
