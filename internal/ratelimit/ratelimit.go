// Package ratelimit implements the Redis-backed fixed-window rate limiter
// protecting the tile/EDR HTTP surface, ported from the teacher's
// internal/services/rate_limiter.go (INCR+EXPIRE Lua script for atomic
// per-window counting, graceful degradation to "allowed" on Redis
// failure).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of a rate-limit check, matching
// internal/middleware.RateLimitResult field for field, so httpapi's
// rateLimiterAdapter can copy one into the other.
type Result struct {
	Allowed         bool
	MinuteRemaining int
	HourRemaining   int
	MinuteReset     int64
	HourReset       int64
	RetryAfter      int
}

// Default limits for the tile/EDR surface, per spec's rate limiting
// note — wider than the teacher's external-API defaults since tile
// clients legitimately issue bursts of requests per map pan/zoom.
const (
	DefaultMinuteLimit = 120
	DefaultHourLimit   = 3000
)

var incrementScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('TTL', KEYS[1])
	if count == 1 or ttl == -1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// Limiter is a Redis-backed fixed-window limiter (one counter per minute
// and one per hour), keyed per client ID.
type Limiter struct {
	redis *redis.Client
}

// New builds a Limiter over an existing Redis client.
func New(client *redis.Client) *Limiter {
	return &Limiter{redis: client}
}

// Check applies the default minute/hour limits for clientID.
func (l *Limiter) Check(ctx context.Context, clientID string) (*Result, error) {
	return l.CheckWithLimits(ctx, clientID, DefaultMinuteLimit, DefaultHourLimit)
}

// CheckWithLimits applies custom minute/hour limits for clientID.
func (l *Limiter) CheckWithLimits(ctx context.Context, clientID string, minuteLimit, hourLimit int) (*Result, error) {
	minuteKey := fmt.Sprintf("ratelimit:%s:minute", clientID)
	hourKey := fmt.Sprintf("ratelimit:%s:hour", clientID)
	now := time.Now()

	minuteCount, minuteTTL, err := l.incrementAndGetTTL(ctx, minuteKey, time.Minute)
	if err != nil {
		return degradedResult(now, minuteLimit, hourLimit, clientID, err), nil
	}
	hourCount, hourTTL, err := l.incrementAndGetTTL(ctx, hourKey, time.Hour)
	if err != nil {
		return degradedResult(now, minuteLimit, hourLimit, clientID, err), nil
	}

	minuteRemaining := max(minuteLimit-int(minuteCount), 0)
	hourRemaining := max(hourLimit-int(hourCount), 0)
	allowed := minuteCount <= int64(minuteLimit) && hourCount <= int64(hourLimit)

	retryAfter := 0
	if !allowed {
		if minuteCount > int64(minuteLimit) {
			retryAfter = int(minuteTTL.Seconds())
		} else {
			retryAfter = int(hourTTL.Seconds())
		}
		slog.Info("ratelimit: exceeded", "client_id", clientID, "minute_count", minuteCount, "hour_count", hourCount, "retry_after", retryAfter)
	}

	return &Result{
		Allowed:         allowed,
		MinuteRemaining: minuteRemaining,
		HourRemaining:   hourRemaining,
		MinuteReset:     now.Add(minuteTTL).Unix(),
		HourReset:       now.Add(hourTTL).Unix(),
		RetryAfter:      retryAfter,
	}, nil
}

// degradedResult allows the request through when Redis is unreachable;
// a rate limiter is a protection mechanism, not a gate that should take
// the tile surface down with it.
func degradedResult(now time.Time, minuteLimit, hourLimit int, clientID string, err error) *Result {
	slog.Warn("ratelimit: redis error, allowing request", "client_id", clientID, "error", err)
	return &Result{
		Allowed:         true,
		MinuteRemaining: minuteLimit,
		HourRemaining:   hourLimit,
		MinuteReset:     now.Add(time.Minute).Unix(),
		HourReset:       now.Add(time.Hour).Unix(),
	}
}

func (l *Limiter) incrementAndGetTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	result, err := incrementScript.Run(ctx, l.redis, []string{key}, int(window.Seconds())).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: increment script failed: %w", err)
	}
	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return 0, 0, fmt.Errorf("ratelimit: unexpected script result %v", result)
	}
	count, ok := resultSlice[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("ratelimit: unexpected count type %v", resultSlice[0])
	}
	ttlSeconds, ok := resultSlice[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("ratelimit: unexpected ttl type %v", resultSlice[1])
	}
	return count, time.Duration(ttlSeconds) * time.Second, nil
}
