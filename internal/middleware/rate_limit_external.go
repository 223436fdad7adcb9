// File: rate_limit_external.go
// Purpose: Rate limiting middleware for tile/EDR endpoints backed by Redis fixed-window counters
// Pattern: middleware
// Dependencies: RateLimiter service
// Frequency: critical - protects tile and EDR endpoints from abusive polling

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// RateLimiterService defines the interface for rate limiting
// This avoids import cycles while allowing the middleware to use the service
type RateLimiterService interface {
	Check(ctx context.Context, clientID string) (*RateLimitResult, error)
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed         bool
	MinuteRemaining int
	HourRemaining   int
	MinuteReset     int64 // Unix timestamp
	HourReset       int64 // Unix timestamp
	RetryAfter      int   // Seconds to wait before retrying
}

// Default limits for the tile/EDR surface
const (
	DefaultMinuteLimit = 120
	DefaultHourLimit   = 3000
)

// ExternalRateLimiter provides rate limiting middleware for the tile/EDR surface
type ExternalRateLimiter struct {
	rateLimiter RateLimiterService
}

// NewExternalRateLimiter creates a new external API rate limiter middleware
func NewExternalRateLimiter(rateLimiter RateLimiterService) *ExternalRateLimiter {
	return &ExternalRateLimiter{
		rateLimiter: rateLimiter,
	}
}

// Middleware returns the rate limiting middleware handler, keyed by client IP
// since this spec carries no authentication layer (see Non-goals).
func (rl *ExternalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIDFromRequest(r)

		// Check rate limits
		result, err := rl.rateLimiter.Check(r.Context(), clientID)
		if err != nil {
			slog.Error("rate limiter: check failed",
				"client_id", clientID,
				"error", err)
			// FAIL CLOSED: Reject request when rate limiter errors (security best practice)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			respondRateLimitError(w, fmt.Sprintf("Rate limiter temporarily unavailable: %s", err.Error()), 60)
			return
		}

		// Add rate limit headers to response
		// Use the most restrictive limit (minute limit is typically smaller)
		limit := DefaultMinuteLimit
		remaining := result.MinuteRemaining
		reset := result.MinuteReset

		// If hour remaining is more restrictive, use that
		if result.HourRemaining < result.MinuteRemaining {
			limit = DefaultHourLimit
			remaining = result.HourRemaining
			reset = result.HourReset
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		// If rate limit exceeded, return 429
		if !result.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
			respondRateLimitError(w, fmt.Sprintf("Too many requests. Please wait %d seconds.", result.RetryAfter), result.RetryAfter)
			return
		}

		// Request allowed, continue to next handler
		next.ServeHTTP(w, r)
	})
}

// respondRateLimitError sends a 429 Too Many Requests response
func respondRateLimitError(w http.ResponseWriter, message string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     message,
		"retry_after": retryAfter,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode rate limit error response", "error", err)
	}
}

// clientIDFromRequest derives a rate-limit bucket key from the request's
// remote address. RealIP (see middleware.go) must run upstream so this
// reflects the client rather than a load balancer.
func clientIDFromRequest(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
