// Package tilecache implements the rendered-tile caches: C14 (in-process
// byte-budgeted LRU) and C15 (out-of-process Redis-backed). Key shape
// follows the teacher's zmanimKey-style colon-joined builder
// (internal/cache/cache.go); the LRU/eviction-counter structure follows
// internal/chunkcache, which is itself grounded on
// cmd/import-elevation/main.go's container/list tile cache.
package tilecache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Key builds the deterministic cache-key string for a render request:
// layer, style, CRS, bbox-or-z/x/y, size, dimension suffix, format
// (spec §4.14).
func Key(parts ...string) string {
	s := parts[0]
	for _, p := range parts[1:] {
		s += ":" + p
	}
	return s
}

type memEntry struct {
	key        string
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// MemoryCache is C14: an in-process byte-budgeted LRU with per-entry TTL.
type MemoryCache struct {
	mu      sync.Mutex
	byKey   map[string]*list.Element
	order   *list.List // front = most recently used
	current int64
	maxBytes int64
	defaultTTL time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Stats mirrors chunkcache.Stats for the tile-cache instrumentation
// surface.
type Stats struct {
	Hits, Misses, Evictions, Bytes, Entries int64
}

const (
	DefaultMaxBytes = 1 << 30 // 1 GiB, per spec §4.14
	DefaultTTL      = 5 * time.Minute
)

// NewMemoryCache creates a C14 cache with the given byte budget and
// default TTL. A zero maxBytes/ttl falls back to the spec defaults.
func NewMemoryCache(maxBytes int64, defaultTTL time.Duration) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemoryCache{
		byKey:      make(map[string]*list.Element),
		order:      list.New(),
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached bytes for key, or ok=false on miss or expiry.
// An expired entry is removed and counted as a miss.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.byKey[key]
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	e := el.Value.(*memEntry)
	if time.Since(e.insertedAt) > e.ttl {
		c.removeElement(el)
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return e.value, true
}

// Put stores value under key with the cache's default TTL, evicting LRU
// entries until the byte budget is satisfied.
func (c *MemoryCache) Put(key string, value []byte) {
	c.PutWithTTL(key, value, c.defaultTTL)
}

// PutWithTTL stores value with an explicit TTL.
func (c *MemoryCache) PutWithTTL(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.byKey[key]; found {
		old := el.Value.(*memEntry)
		c.current -= int64(len(old.value))
		el.Value = &memEntry{key: key, value: value, insertedAt: time.Now(), ttl: ttl}
		c.current += int64(len(value))
		c.order.MoveToFront(el)
		c.evictUntilFits()
		return
	}

	el := c.order.PushFront(&memEntry{key: key, value: value, insertedAt: time.Now(), ttl: ttl})
	c.byKey[key] = el
	c.current += int64(len(value))
	c.evictUntilFits()
}

func (c *MemoryCache) evictUntilFits() {
	for c.current > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeElement(back)
		c.evictions.Add(1)
	}
}

func (c *MemoryCache) removeElement(el *list.Element) {
	e := el.Value.(*memEntry)
	c.current -= int64(len(e.value))
	c.order.Remove(el)
	delete(c.byKey, e.key)
}

// Clear drains the cache entirely.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]*list.Element)
	c.order.Init()
	c.current = 0
}

// EvictPercentage removes approximately frac of the cache's bytes,
// starting from the LRU end, for the memory-pressure monitor (C17) to
// call under sustained pressure. frac must be in (0,1].
func (c *MemoryCache) EvictPercentage(frac float64) {
	if frac <= 0 {
		return
	}
	if frac > 1 {
		frac = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	target := int64(float64(c.current) * frac)
	var freed int64
	for freed < target {
		back := c.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*memEntry)
		freed += int64(len(e.value))
		c.removeElement(back)
		c.evictions.Add(1)
	}
}

// Stats returns a snapshot of the cache's counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Bytes:     c.current,
		Entries:   int64(len(c.byKey)),
	}
}
