package chunkcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCacheEvictsLRUWhenOverBudget(t *testing.T) {
	// Each chunk is 4 float32s = 16 bytes; budget fits exactly 2 chunks.
	c := New(32)

	k1 := Key{ArrayPath: "a", Level: 0, Row: 0, Col: 0}
	k2 := Key{ArrayPath: "a", Level: 0, Row: 0, Col: 1}
	k3 := Key{ArrayPath: "a", Level: 0, Row: 0, Col: 2}

	c.Put(k1, make([]float32, 4))
	c.Put(k2, make([]float32, 4))
	c.Get(k1) // touch k1 so k2 becomes LRU
	c.Put(k3, make([]float32, 4))

	if _, ok := c.Get(k2); ok {
		t.Error("expected k2 to be evicted as LRU")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("expected k1 to survive (recently touched)")
	}
	if _, ok := c.Get(k3); !ok {
		t.Error("expected k3 to be present")
	}

	st := c.Stats()
	if st.Bytes > 32 {
		t.Errorf("cache exceeds budget: %d bytes", st.Bytes)
	}
	if st.Evictions == 0 {
		t.Error("expected at least one eviction")
	}
}

func TestCacheStatsHitsAndMisses(t *testing.T) {
	c := New(1024)
	k := Key{ArrayPath: "a", Level: 0, Row: 0, Col: 0}

	if _, ok := c.Get(k); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(k, []float32{1, 2, 3})
	if _, ok := c.Get(k); !ok {
		t.Fatal("expected hit after put")
	}

	st := c.Stats()
	if st.Misses != 1 || st.Hits != 1 {
		t.Errorf("got hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}
}

func TestGetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	c := New(1 << 20)
	k := Key{ArrayPath: "a", Level: 0, Row: 1, Col: 1}

	var loadCount atomic.Int64
	load := func(Key) ([]float32, error) {
		loadCount.Add(1)
		return []float32{9, 9, 9}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(k, load)
			if err != nil {
				t.Error(err)
			}
			if len(v) != 3 {
				t.Errorf("unexpected value %v", v)
			}
		}()
	}
	wg.Wait()

	if n := loadCount.Load(); n != 1 {
		t.Errorf("expected exactly 1 load, got %d", n)
	}
}

func TestGetOrLoadPropagatesLoaderError(t *testing.T) {
	c := New(1024)
	k := Key{ArrayPath: "a", Level: 0, Row: 0, Col: 0}
	wantErr := errors.New("boom")

	_, err := c.GetOrLoad(k, func(Key) ([]float32, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}

func TestClearDropsAllEntries(t *testing.T) {
	c := New(1024)
	c.Put(Key{ArrayPath: "a"}, []float32{1})
	c.Put(Key{ArrayPath: "b"}, []float32{2})
	c.Clear()

	st := c.Stats()
	if st.Entries != 0 || st.Bytes != 0 {
		t.Errorf("expected empty cache after Clear, got %+v", st)
	}
}
