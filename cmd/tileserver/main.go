// Command tileserver runs the grid tile-serving HTTP API: it wires the
// catalog, array store, chunk and tile caches, the memory-pressure
// monitor, per-model cache warmers, and the tile-request coordinator
// behind internal/httpapi's router.
//
// Grounded on the teacher's cmd/api/main.go: config load -> dependency
// construction -> goroutine-launched http.Server -> SIGINT/SIGTERM ->
// context-timeout graceful shutdown.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/config"
	"github.com/jcom-dev/weathergrid/internal/coordinator"
	"github.com/jcom-dev/weathergrid/internal/httpapi"
	"github.com/jcom-dev/weathergrid/internal/memmon"
	"github.com/jcom-dev/weathergrid/internal/ratelimit"
	"github.com/jcom-dev/weathergrid/internal/store"
	"github.com/jcom-dev/weathergrid/internal/tilecache"
	"github.com/jcom-dev/weathergrid/internal/warm"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("tileserver: connect catalog: %v", err)
	}
	defer cat.Close()
	if err := cat.Migrate(ctx); err != nil {
		log.Fatalf("tileserver: migrate catalog: %v", err)
	}

	arrayStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("tileserver: build store: %v", err)
	}

	chunks := chunkcache.New(int64(cfg.ChunkCacheSizeMB) << 20)
	l1 := tilecache.NewMemoryCache(int64(cfg.L1CacheSizeMB)<<20, time.Duration(cfg.L1CacheTTLSecs)*time.Second)

	var l2 *tilecache.RemoteCache
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		l2, err = tilecache.NewRemoteCache(ctx, cfg.RedisURL, time.Duration(cfg.L1CacheTTLSecs)*time.Second)
		if err != nil {
			slog.Warn("tileserver: L2 cache unavailable, continuing with L1 only", "error", err)
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("tileserver: rate limiting disabled, invalid REDIS_URL", "error", err)
		} else {
			limiter = ratelimit.New(redis.NewClient(opts))
		}
	}

	layers, err := config.LoadLayers(cfg.LayersPath)
	if err != nil {
		log.Fatalf("tileserver: load layers config: %v", err)
	}

	co := coordinator.New(cat, arrayStore, chunks, l1, l2, layers)

	mon := memmon.New(memmon.Config{
		CheckInterval: time.Duration(cfg.MemoryCheckSecs) * time.Second,
		Threshold:     cfg.MemoryThreshold,
		Target:        cfg.MemoryTarget,
	}, chunks, l1)
	go mon.Run(ctx)

	warmer := warm.New(cat, arrayStore, chunks)
	for name, layer := range layers {
		wc := config.DefaultModelWarmConfig(layer.Model)
		if !wc.Enabled {
			continue
		}
		wc.Parameters = []string{layer.Parameter}
		slog.Info("tileserver: starting warmer", "layer", name, "model", layer.Model)
		go warmer.Run(ctx, warm.ModelConfig{
			Model: wc.Model, Enabled: wc.Enabled, KeepRecent: wc.KeepRecent,
			ZoomLevels: wc.ZoomLevels, Parameters: wc.Parameters,
			PollInterval: time.Duration(wc.PollInterval) * time.Second,
		})
	}

	server := &httpapi.Server{
		Coordinator:    co,
		EDR:            httpapi.NewCatalogResolver(cat, arrayStore, chunks),
		AllowedOrigins: []string{"*"},
		RateLimiter:    limiter,
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("tileserver: listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("tileserver: serve: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("tileserver: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("tileserver: forced shutdown: %v", err)
	}
	slog.Info("tileserver: exited")
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreKind {
	case "s3":
		return store.NewS3Store(ctx, store.S3Config{Bucket: cfg.StorePath})
	default:
		return store.NewLocalFS(cfg.StorePath), nil
	}
}
