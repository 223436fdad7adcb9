// Package memmon implements the memory-pressure monitor (C17): a
// ticker-driven watchdog that samples this process's RSS against a
// detected memory limit and, under sustained pressure, evicts the chunk
// cache (C3) and the L1 tile cache (C14) to bring usage back under a
// target ratio.
//
// Ported line-for-line from original_source/services/wms-api/src/memory_pressure.rs:
// cgroup v2 -> cgroup v1 -> /proc/meminfo -> 16GiB-default limit
// detection, /proc/self/status VmRSS sampling, and the two-stage
// evict-to-target strategy (chunk cache has no partial-eviction API, so
// it is cleared outright before the tile cache is trimmed by
// percentage).
package memmon

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/metrics"
	"github.com/jcom-dev/weathergrid/internal/tilecache"
)

const defaultMemoryLimit = 16 << 30 // 16 GiB, matches the Rust default

// Config controls when and how hard the monitor reacts to pressure.
type Config struct {
	CheckInterval time.Duration
	Threshold     float64 // usage/limit ratio that triggers eviction
	Target        float64 // usage/limit ratio eviction aims to reach
}

// DefaultConfig mirrors the Rust original's MemoryPressureMonitor::new defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 30 * time.Second,
		Threshold:     0.85,
		Target:        0.70,
	}
}

// Monitor periodically checks process RSS against a detected memory
// limit and evicts caches when usage exceeds Config.Threshold.
type Monitor struct {
	cfg         Config
	limitBytes  int64
	chunkCache  *chunkcache.Cache
	tileCache   *tilecache.MemoryCache
}

// New builds a Monitor with an auto-detected memory limit. chunk and
// tile are the caches evicted under pressure; either may be nil if that
// tier isn't in use.
func New(cfg Config, chunk *chunkcache.Cache, tile *tilecache.MemoryCache) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.Target <= 0 {
		cfg.Target = DefaultConfig().Target
	}
	return &Monitor{
		cfg:        cfg,
		limitBytes: detectMemoryLimit(),
		chunkCache: chunk,
		tileCache:  tile,
	}
}

// Run blocks, checking and evicting on every CheckInterval tick, until
// ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndEvict()
		}
	}
}

// checkAndEvict samples RSS, compares against the limit, and evicts if
// the usage ratio exceeds Threshold.
func (m *Monitor) checkAndEvict() {
	rss, err := processRSS()
	if err != nil {
		slog.Error("memmon: failed to read RSS", "error", err)
		return
	}

	ratio := float64(rss) / float64(m.limitBytes)
	slog.Info("memmon: usage sample", "rss_bytes", rss, "limit_bytes", m.limitBytes, "ratio", ratio)
	metrics.ProcessRSSBytes.Set(float64(rss))
	if m.chunkCache != nil {
		metrics.ChunkCacheBytes.Set(float64(m.chunkCache.Stats().Bytes))
	}
	if m.tileCache != nil {
		metrics.TileCacheBytes.Set(float64(m.tileCache.Stats().Bytes))
	}

	if ratio <= m.cfg.Threshold {
		return
	}

	slog.Warn("memmon: threshold exceeded, evicting", "ratio", ratio, "threshold", m.cfg.Threshold)
	m.evictToTarget(rss)
}

// evictToTarget implements the Rust original's evict_to_target two-stage
// strategy: the chunk cache has no partial-eviction API, so it is
// cleared outright when a meaningful amount of bytes must be freed from
// it; the L1 tile cache is then trimmed by percentage for the remainder.
func (m *Monitor) evictToTarget(currentRSS int64) {
	targetBytes := int64(float64(m.limitBytes) * m.cfg.Target)
	bytesToFree := currentRSS - targetBytes
	if bytesToFree <= 0 {
		return
	}

	if m.chunkCache != nil {
		stats := m.chunkCache.Stats()
		if stats.Bytes > 0 {
			evictRatio := min(float64(bytesToFree)/float64(stats.Bytes), 0.5)
			if evictRatio > 0.1 {
				slog.Warn("memmon: clearing chunk cache", "bytes", stats.Bytes)
				m.chunkCache.Clear()
				metrics.MemoryEvictionsTotal.WithLabelValues("chunk").Inc()
				bytesToFree -= stats.Bytes
			}
		}
	}

	if bytesToFree > 0 && m.tileCache != nil {
		stats := m.tileCache.Stats()
		if stats.Bytes > 0 {
			evictRatio := min(float64(bytesToFree)/float64(stats.Bytes), 0.3)
			if evictRatio > 0.05 {
				slog.Warn("memmon: evicting tile cache fraction", "fraction", evictRatio)
				m.tileCache.EvictPercentage(evictRatio)
				metrics.MemoryEvictionsTotal.WithLabelValues("tile").Inc()
			}
		}
	}
}

// detectMemoryLimit follows the Rust original's fallback chain: cgroup
// v2, then cgroup v1, then total system memory from /proc/meminfo, then
// a hardcoded default.
func detectMemoryLimit() int64 {
	if v, ok := readCgroupV2Limit(); ok {
		return v
	}
	if v, ok := readCgroupV1Limit(); ok {
		return v
	}
	if v, ok := readMemTotal(); ok {
		return v
	}
	return defaultMemoryLimit
}

func readCgroupV2Limit() (int64, bool) {
	data, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func readCgroupV1Limit() (int64, bool) {
	data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes")
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	// cgroup v1 reports a near-MaxInt64 sentinel when unlimited.
	const unlimitedSentinel = int64(1) << 62
	if v > unlimitedSentinel {
		return 0, false
	}
	return v, true
}

func readMemTotal() (int64, bool) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}

// processRSS reads this process's resident set size from
// /proc/self/status's VmRSS line, reported there in kB.
func processRSS() (int64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, os.ErrInvalid
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, os.ErrNotExist
}
