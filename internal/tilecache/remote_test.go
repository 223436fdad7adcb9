package tilecache

import (
	"context"
	"testing"
	"time"

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

func TestRemoteCacheGetSetRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	c := &RemoteCache{client: client, defaultTTL: time.Minute}
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss before set")
	}
	c.Put(ctx, "k", []byte("tile-bytes"))
	v, ok := c.Get(ctx, "k")
	if !ok || string(v) != "tile-bytes" {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestRemoteCacheDegradesOnFailure(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close() // closed before use: every call now fails
	defer client.Close()

	c := &RemoteCache{client: client, defaultTTL: time.Minute}
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected degraded miss on backend failure")
	}
	c.Put(ctx, "k", []byte("x")) // must not panic
}
