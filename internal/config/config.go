// Package config loads the core's recognized configuration options
// (spec §6) from environment variables via viper, following
// forest-bd-viewer's internal/config/config.go pattern — the teacher
// itself has no config loader in the retrieved pack.
package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the full set of options the core consumes, per spec §6.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	StoreKind   string `mapstructure:"STORE_KIND"` // "local" or "s3"
	StorePath   string `mapstructure:"STORE_PATH"` // local root dir, or s3 bucket
	ListenAddr  string `mapstructure:"LISTEN_ADDR"`
	LayersPath  string `mapstructure:"LAYERS_CONFIG"` // path to the layer/style registry YAML

	ChunkCacheSizeMB int `mapstructure:"CHUNK_CACHE_SIZE_MB"`

	L1CacheSizeMB  int `mapstructure:"L1_CACHE_SIZE_MB"`
	L1CacheTTLSecs int `mapstructure:"L1_CACHE_TTL_SECS"`

	MemoryLimitMB      int     `mapstructure:"MEMORY_LIMIT_MB"` // loaded but not passed to memmon, which always auto-detects the limit
	MemoryThreshold    float64 `mapstructure:"MEMORY_THRESHOLD"`
	MemoryTarget       float64 `mapstructure:"MEMORY_TARGET"`
	MemoryCheckSecs    int     `mapstructure:"MEMORY_CHECK_INTERVAL_SECS"`
}

// Load reads configuration from the process environment (and an
// optional .env file, if present), applying spec §6's defaults for any
// option left unset.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "STORE_KIND", "STORE_PATH", "LISTEN_ADDR", "LAYERS_CONFIG",
		"CHUNK_CACHE_SIZE_MB",
		"L1_CACHE_SIZE_MB", "L1_CACHE_TTL_SECS",
		"MEMORY_LIMIT_MB", "MEMORY_THRESHOLD", "MEMORY_TARGET", "MEMORY_CHECK_INTERVAL_SECS",
	} {
		_ = viper.BindEnv(key)
	}

	viper.SetDefault("STORE_KIND", "local")
	viper.SetDefault("STORE_PATH", "./data")
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("LAYERS_CONFIG", "./layers.yaml")
	viper.SetDefault("CHUNK_CACHE_SIZE_MB", 1024)
	viper.SetDefault("L1_CACHE_SIZE_MB", 1024)
	viper.SetDefault("L1_CACHE_TTL_SECS", 300)
	viper.SetDefault("MEMORY_LIMIT_MB", 0)
	viper.SetDefault("MEMORY_THRESHOLD", 0.80)
	viper.SetDefault("MEMORY_TARGET", 0.70)
	viper.SetDefault("MEMORY_CHECK_INTERVAL_SECS", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config: no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatalf("config: failed to unmarshal: %v", err)
	}
	return cfg
}

// ModelWarmConfig is one model's warming policy, per spec §6's "Warmer
// per model" option group. Unlike the flat Config above, warm policy is
// per-model and is not bound to the environment; nothing in this module
// loads it from a file or env vars. cmd/tileserver starts from
// DefaultModelWarmConfig, whose Enabled is false, so no warmer runs there.
type ModelWarmConfig struct {
	Model         string
	Enabled       bool
	KeepRecent    int
	WarmOnIngest  bool
	PollInterval  int // seconds
	Parameters    []string
	ZoomLevels    []int
}

// DefaultModelWarmConfig returns spec §6's warmer defaults for model.
func DefaultModelWarmConfig(model string) ModelWarmConfig {
	return ModelWarmConfig{
		Model:        model,
		Enabled:      false,
		KeepRecent:   10,
		WarmOnIngest: false,
		PollInterval: 60,
		Parameters:   nil,
		ZoomLevels:   []int{0, 2, 4},
	}
}
