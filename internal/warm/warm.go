// Package warm implements the cache warmer (C16): a background task
// that, per spec §4.16, periodically reads the most recent arrays of a
// model at a configured set of overview zoom levels so the chunk cache
// (C3) is already populated before real tile requests arrive.
// Grounded on internal/cache/cache.go's Prefetch (iterate x
// skip-if-cached x compute x store, errors logged and skipped per item
// rather than aborting the whole pass).
package warm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/metrics"
	"github.com/jcom-dev/weathergrid/internal/store"
)

// ModelConfig is one model's warming policy (spec §4.16).
type ModelConfig struct {
	Model           string
	Enabled         bool
	KeepRecent      int
	ZoomLevels      []int
	Parameters      []string
	PollInterval    time.Duration
}

// catalogReader is the subset of *catalog.Catalog the warmer calls.
type catalogReader interface {
	ListRecentEntries(ctx context.Context, model, parameter string, keepRecent int) ([]catalog.Entry, error)
}

// Warmer runs the periodic warming loop for a set of models.
type Warmer struct {
	cat   catalogReader
	store store.Store
	cache *chunkcache.Cache

	mu     sync.Mutex
	warmed map[string]time.Time
}

// New builds a Warmer. cat, st, and cache are the catalog, array store,
// and chunk cache it warms against.
func New(cat catalogReader, st store.Store, cache *chunkcache.Cache) *Warmer {
	return &Warmer{
		cat:    cat,
		store:  st,
		cache:  cache,
		warmed: make(map[string]time.Time),
	}
}

// Run blocks, warming cfg on every PollInterval tick until ctx is
// cancelled.
func (w *Warmer) Run(ctx context.Context, cfg ModelConfig) {
	if !cfg.Enabled {
		return
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.warmOnce(ctx, cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.warmOnce(ctx, cfg)
		}
	}
}

// warmOnce performs a single warming pass: for each parameter, the
// keep_recent most recent arrays, for each configured zoom level,
// populating C3 via a full-array region read sized 256*2^z.
func (w *Warmer) warmOnce(ctx context.Context, cfg ModelConfig) {
	for _, parameter := range cfg.Parameters {
		entries, err := w.cat.ListRecentEntries(ctx, cfg.Model, parameter, cfg.KeepRecent)
		if err != nil {
			slog.Error("warm: catalog lookup failed", "model", cfg.Model, "parameter", parameter, "error", err)
			metrics.WarmRunsTotal.WithLabelValues(cfg.Model, "error").Inc()
			continue
		}

		for _, entry := range entries {
			for _, z := range cfg.ZoomLevels {
				if w.alreadyWarmed(entry.StoragePath, z) {
					continue
				}
				if err := w.warmOne(ctx, entry, z); err != nil {
					slog.Error("warm: region read failed", "path", entry.StoragePath, "zoom", z, "error", err)
					metrics.WarmRunsTotal.WithLabelValues(cfg.Model, "error").Inc()
					continue
				}
				w.markWarmed(entry.StoragePath, z)
				metrics.WarmRunsTotal.WithLabelValues(cfg.Model, "ok").Inc()
			}
		}
	}
}

func (w *Warmer) warmOne(ctx context.Context, entry catalog.Entry, zoom int) error {
	size := 256 * (1 << uint(zoom))
	r, err := grid.Open(ctx, w.store, w.cache, entry.StoragePath, 0)
	if err != nil {
		return err
	}
	meta := r.Metadata()
	level := grid.SelectLevel(meta, size, size)

	lr, err := grid.Open(ctx, w.store, w.cache, entry.StoragePath, level.Level)
	if err != nil {
		return err
	}
	_, err = lr.ReadFull(ctx)
	return err
}

func (w *Warmer) alreadyWarmed(path string, zoom int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.warmed[warmKey(path, zoom)]
	return ok
}

func (w *Warmer) markWarmed(path string, zoom int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warmed[warmKey(path, zoom)] = time.Now()

	// Bound the tracked set so long-running warmers don't leak memory
	// over many ingestion cycles.
	const maxTracked = 10_000
	if len(w.warmed) > maxTracked {
		for k, t := range w.warmed {
			if time.Since(t) > 24*time.Hour {
				delete(w.warmed, k)
			}
		}
	}
}

func warmKey(path string, zoom int) string {
	return fmt.Sprintf("%s@%d", path, zoom)
}
