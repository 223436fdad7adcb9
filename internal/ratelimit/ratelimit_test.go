package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func TestCheckAllowsWithinLimits(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	l := New(client)
	result, err := l.Check(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected first request to be allowed")
	}
	if result.MinuteRemaining != DefaultMinuteLimit-1 {
		t.Errorf("got MinuteRemaining=%d, want %d", result.MinuteRemaining, DefaultMinuteLimit-1)
	}
}

func TestCheckBlocksOverMinuteLimit(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	l := New(client)
	ctx := context.Background()

	var last *Result
	for i := 0; i < 5; i++ {
		r, err := l.CheckWithLimits(ctx, "client-2", 3, 1000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = r
	}
	if last.Allowed {
		t.Error("expected request past the minute limit to be blocked")
	}
	if last.RetryAfter <= 0 {
		t.Error("expected a positive retry_after once blocked")
	}
}

func TestCheckDegradesToAllowedOnRedisFailure(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close() // closed before use: every call now fails
	defer client.Close()

	l := New(client)
	result, err := l.Check(context.Background(), "client-3")
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected degraded result to allow the request")
	}
}
