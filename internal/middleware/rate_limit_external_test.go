// File: rate_limit_external_test.go
// Purpose: Integration tests for the tile/EDR rate limiting middleware

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// mockRateLimiter is a simple in-memory rate limiter for testing
type mockRateLimiter struct {
	counts map[string]int
	mr     *miniredis.Miniredis
	client *redis.Client
}

func setupTestRateLimiter(t *testing.T) (*mockRateLimiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return &mockRateLimiter{
		counts: make(map[string]int),
		mr:     mr,
		client: client,
	}, mr
}

func (m *mockRateLimiter) Check(ctx context.Context, clientID string) (*RateLimitResult, error) {
	key := "ratelimit:" + clientID + ":minute"

	count, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	if count == 1 {
		m.client.Expire(ctx, key, 60*time.Second)
	}

	ttl := m.client.TTL(ctx, key).Val()

	allowed := count <= int64(DefaultMinuteLimit)
	remaining := DefaultMinuteLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	retryAfter := 0
	if !allowed {
		retryAfter = int(ttl.Seconds())
	}

	return &RateLimitResult{
		Allowed:         allowed,
		MinuteRemaining: remaining,
		HourRemaining:   DefaultHourLimit - int(count), // simplified
		MinuteReset:     time.Now().Add(ttl).Unix(),
		HourReset:       time.Now().Add(time.Hour).Unix(),
		RetryAfter:      retryAfter,
	}, nil
}

func reqFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest("GET", "/tiles/gfs_tmp/temperature/3/2/3.png", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestExternalRateLimiter_AllowsRequestsWithinLimit(t *testing.T) {
	rl, mr := setupTestRateLimiter(t)
	defer mr.Close()

	mw := NewExternalRateLimiter(rl)

	handler := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqFrom("203.0.113.1:54321"))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("X-RateLimit-Limit header not set")
	}
	if rec.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining header not set")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header not set")
	}
}

func TestExternalRateLimiter_BlocksAfterMinuteLimit(t *testing.T) {
	rl, mr := setupTestRateLimiter(t)
	defer mr.Close()

	mw := NewExternalRateLimiter(rl)

	handler := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))

	addr := "203.0.113.2:1"

	for i := 0; i < DefaultMinuteLimit; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, reqFrom(addr))

		if rec.Code != http.StatusOK {
			t.Errorf("request %d should succeed, got status %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqFrom(addr))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}

	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set on 429 response")
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["error"] != "rate_limit_exceeded" {
		t.Errorf("expected error code 'rate_limit_exceeded', got %v", response["error"])
	}

	if _, ok := response["retry_after"]; !ok {
		t.Error("response should include retry_after field")
	}
}

func TestExternalRateLimiter_IsolatesClientsByIP(t *testing.T) {
	rl, mr := setupTestRateLimiter(t)
	defer mr.Close()

	mw := NewExternalRateLimiter(rl)

	handler := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < DefaultMinuteLimit; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, reqFrom("203.0.113.3:1"))

		if rec.Code != http.StatusOK {
			t.Errorf("client 1 request %d should succeed", i+1)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqFrom("203.0.113.4:1"))

	if rec.Code != http.StatusOK {
		t.Errorf("a different source IP should not be affected by the first client's quota, got status %d", rec.Code)
	}
}

func TestExternalRateLimiter_ResetsAfterWindow(t *testing.T) {
	rl, mr := setupTestRateLimiter(t)
	defer mr.Close()

	mw := NewExternalRateLimiter(rl)

	handler := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	addr := "203.0.113.5:1"

	for i := 0; i < DefaultMinuteLimit; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, reqFrom(addr))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqFrom(addr))
	if rec.Code != http.StatusTooManyRequests {
		t.Error("expected request to be blocked")
	}

	mr.FastForward(61 * time.Second)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqFrom(addr))
	if rec.Code != http.StatusOK {
		t.Errorf("expected request to succeed after reset, got status %d", rec.Code)
	}
}
