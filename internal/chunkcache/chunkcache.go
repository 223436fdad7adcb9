// Package chunkcache implements the chunk cache (C3): a process-wide,
// byte-budgeted map from chunk identity to a decompressed float32 array,
// with LRU eviction on insert and single-flight coalescing of concurrent
// loads for the same key.
//
// The LRU bookkeeping (container/list + map[key]*list.Element, with the
// front of the list the most-recently-used entry) follows
// cmd/import-elevation's LRUTileCache; this version is byte-bounded
// instead of entry-bounded and tracks hit/miss/eviction stats per spec §4.3.
package chunkcache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Key identifies one chunk within one array level.
type Key struct {
	ArrayPath string
	Level     int
	Row, Col  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/c/%d/%d", k.ArrayPath, k.Level, k.Row, k.Col)
}

type entry struct {
	key   Key
	value []float32
	bytes int64
}

// Stats is a snapshot of cache counters, consumed by the memory-pressure
// monitor (C17) and exposed for metrics.
type Stats struct {
	Hits, Misses, Evictions int64
	Bytes                   int64
	Entries                 int
}

// Cache is the size-bounded chunk cache. Safe for concurrent use; Get/Put
// hold a single mutex guarding the LRU list, short enough that reads never
// block behind a slow loader (loading itself happens outside the lock, via
// Loader/GetOrLoad's single-flight group).
type Cache struct {
	budget int64

	mu      sync.Mutex
	byKey   map[Key]*list.Element
	order   *list.List // front = most recently used
	current int64

	hits, misses, evictions atomic.Int64

	sf singleflight.Group
}

// New returns a Cache with the given byte budget B.
func New(budgetBytes int64) *Cache {
	return &Cache{
		budget: budgetBytes,
		byKey:  make(map[Key]*list.Element),
		order:  list.New(),
	}
}

// Get returns the cached value for key, updating its recency.
func (c *Cache) Get(key Key) ([]float32, bool) {
	c.mu.Lock()
	elem, ok := c.byKey[key]
	if ok {
		c.order.MoveToFront(elem)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return elem.Value.(*entry).value, true
}

// Put inserts or replaces a value, evicting least-recently-used entries
// until the cache fits its byte budget. A value larger than the whole
// budget is not cached (any older value for key is dropped) and the call
// still succeeds — the cache is best-effort per spec §4.3.
func (c *Cache) Put(key Key, value []float32) {
	size := int64(len(value)) * 4

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.budget {
		if elem, ok := c.byKey[key]; ok {
			c.order.Remove(elem)
			delete(c.byKey, key)
			c.current -= elem.Value.(*entry).bytes
		}
		return
	}

	if elem, ok := c.byKey[key]; ok {
		old := elem.Value.(*entry)
		c.current += size - old.bytes
		old.value = value
		old.bytes = size
		c.order.MoveToFront(elem)
	} else {
		e := &entry{key: key, value: value, bytes: size}
		elem := c.order.PushFront(e)
		c.byKey[key] = elem
		c.current += size
	}

	for c.current > c.budget && c.order.Len() > 0 {
		back := c.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*entry)
		if evicted.key == key {
			// Never evict the entry we just inserted/updated.
			break
		}
		c.order.Remove(back)
		delete(c.byKey, evicted.key)
		c.current -= evicted.bytes
		c.evictions.Add(1)
	}
}

// Clear drops every entry, used by the memory-pressure monitor's full
// chunk-cache clear (spec §4.17 step 2: "no partial eviction API on C3").
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[Key]*list.Element)
	c.order = list.New()
	c.current = 0
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := c.order.Len()
	bytes := c.current
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Bytes:     bytes,
		Entries:   entries,
	}
}

// Loader fetches and decodes the chunk for key on a cache miss.
type Loader func(key Key) ([]float32, error)

// GetOrLoad returns the cached value for key, or calls load on a miss.
// Concurrent GetOrLoad calls for the same key are coalesced via
// singleflight so exactly one load happens, per spec §4.4 step 5's
// miss-coalescing requirement.
func (c *Cache) GetOrLoad(key Key, load Loader) ([]float32, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(key.String(), func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		loaded, err := load(key)
		if err != nil {
			return nil, err
		}
		c.Put(key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
