// Package metrics defines the Prometheus collectors recorded by the
// coordinator (tile requests, render time, L1/L2 hits), the warmer, and
// the memory monitor (RSS and chunk/tile cache size gauges); the caches
// themselves record nothing. Collection only: no /metrics handler is
// wired, since export is out of scope (see DESIGN.md's internal/metrics
// entry). The collectors
// use github.com/prometheus/client_golang, the metrics library named
// across the retrieval pack's manifests (e.g. ClusterCockpit-cc-backend,
// tomtom215-cartographus) even though the teacher itself carries no
// metrics layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TileRequestsTotal counts coordinator.Serve calls by outcome.
	TileRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weathergrid_tile_requests_total",
		Help: "Total tile requests served, by layer and outcome.",
	}, []string{"layer", "outcome"})

	// TileRenderDuration tracks coordinator.Serve wall time.
	TileRenderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weathergrid_tile_render_duration_seconds",
		Help:    "Tile render duration, from cache miss to encoded PNG.",
		Buckets: prometheus.DefBuckets,
	}, []string{"layer"})

	// ChunkCacheBytes reports the chunk cache's current resident size.
	ChunkCacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weathergrid_chunk_cache_bytes",
		Help: "Chunk cache resident size in bytes.",
	})

	// TileCacheBytes reports the L1 tile cache's current resident size.
	TileCacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weathergrid_tile_cache_bytes",
		Help: "L1 tile cache resident size in bytes.",
	})

	// CacheHitsTotal counts cache lookups by cache tier and outcome.
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weathergrid_cache_hits_total",
		Help: "Cache lookups, by tier (l1/l2) and outcome (hit/miss).",
	}, []string{"tier", "outcome"})

	// WarmRunsTotal counts completed warmer passes, by model and outcome.
	WarmRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weathergrid_warm_runs_total",
		Help: "Completed cache-warming passes, by model and outcome.",
	}, []string{"model", "outcome"})

	// MemoryEvictionsTotal counts memory-pressure eviction passes, by cache.
	MemoryEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weathergrid_memory_evictions_total",
		Help: "Memory-pressure eviction passes, by cache (chunk/tile).",
	}, []string{"cache"})

	// ProcessRSSBytes reports the last RSS sample the memory monitor took.
	ProcessRSSBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weathergrid_process_rss_bytes",
		Help: "Last sampled process resident set size in bytes.",
	})
)

// Registry collects every collector above, for callers that want to
// register with a private registry instead of the global default
// (e.g. under test, to avoid duplicate-registration panics across
// package-level test runs).
func Registry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		TileRequestsTotal, TileRenderDuration,
		ChunkCacheBytes, TileCacheBytes, CacheHitsTotal,
		WarmRunsTotal, MemoryEvictionsTotal, ProcessRSSBytes,
	)
	return r
}
