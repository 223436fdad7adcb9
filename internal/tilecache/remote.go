package tilecache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteCache is C15: the out-of-process tile cache, same logical
// contract as MemoryCache but backed by Redis. LRU eviction is managed
// by the Redis service itself (maxmemory-policy); this client only
// manages TTLs and degrades to a miss on any backend failure, per
// spec §4.15. Connection setup follows internal/cache/cache.go's
// redis.ParseURL + Ping pattern.
type RemoteCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRemoteCache parses redisURL and verifies connectivity with a
// bounded ping, exactly as the teacher's cache.New does.
func NewRemoteCache(ctx context.Context, redisURL string, defaultTTL time.Duration) (*RemoteCache, error) {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	slog.Info("tile cache connection established", "host", opt.Addr)
	return &RemoteCache{client: client, defaultTTL: defaultTTL}, nil
}

// Close closes the Redis connection.
func (c *RemoteCache) Close() error { return c.client.Close() }

// Get returns the cached bytes for key. Any Redis error (not just a
// miss) degrades to ok=false so a remote-cache outage never surfaces as
// a request error (spec §4.15: "failures degrade gracefully").
func (c *RemoteCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("tile cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Put stores value under key with the cache's default TTL. Failures are
// logged and swallowed, matching Get's degrade-to-miss contract.
func (c *RemoteCache) Put(ctx context.Context, key string, value []byte) {
	c.PutWithTTL(ctx, key, value, c.defaultTTL)
}

// PutWithTTL stores value with an explicit TTL.
func (c *RemoteCache) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("tile cache set failed", "key", key, "error", err)
	}
}
