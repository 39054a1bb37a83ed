// Package config loads the immutable engine configuration. Configuration
// is read once at startup; nothing in this package is mutated afterward.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete, validated configuration for one engine
// instance.
type Config struct {
	ProcessorIntervalSeconds float64            `yaml:"processor_interval_seconds" validate:"gte=0.1,lte=10"`
	QuoteTTLSeconds          int                `yaml:"quote_ttl_seconds" validate:"gte=1"`
	PatternTTLSeconds        int                `yaml:"pattern_ttl_seconds" validate:"gte=1"`
	LargeSizeThreshold       int64              `yaml:"large_size_threshold" validate:"gte=0"`
	TrackedIdleEvictSeconds  int                `yaml:"tracked_idle_evict_seconds" validate:"gte=1"`
	TickSizes                map[string]float64 `yaml:"tick_sizes"`
	DefaultTickSize          float64            `yaml:"default_tick_size" validate:"gt=0"`

	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the development HTTP harness (cmd/orderflow-server).
// It is not part of the core engine's analysis contract.
type ServerConfig struct {
	Addr               string `yaml:"addr" validate:"required"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" validate:"gte=0"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		ProcessorIntervalSeconds: 1,
		QuoteTTLSeconds:          3600,
		PatternTTLSeconds:        3600,
		LargeSizeThreshold:       10_000,
		TrackedIdleEvictSeconds:  600,
		DefaultTickSize:          0.01,
		TickSizes:                map[string]float64{},
		Server: ServerConfig{
			Addr:               ":8089",
			RateLimitPerMinute: 120,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a YAML config file, falling back to Default
// for any field the file does not set explicitly via zero-value merge.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return finalize(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return finalize(cfg)
}

func finalize(cfg Config) (Config, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// ProcessorInterval is the processor tick cadence as a duration.
func (c Config) ProcessorInterval() time.Duration {
	return time.Duration(c.ProcessorIntervalSeconds * float64(time.Second))
}

// QuoteTTL is the quote expiry as a duration.
func (c Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

// PatternTTL is the pattern log expiry as a duration.
func (c Config) PatternTTL() time.Duration {
	return time.Duration(c.PatternTTLSeconds) * time.Second
}

// TrackedIdleEvict is the ticker-eviction idle window: a ticker with
// no quotes for this long is dropped from the processor's tracked set.
func (c Config) TrackedIdleEvict() time.Duration {
	return time.Duration(c.TrackedIdleEvictSeconds) * time.Second
}

// TickSize returns the minimum price increment for a ticker, falling
// back to DefaultTickSize when the ticker has no override.
func (c Config) TickSize(ticker string) float64 {
	if v, ok := c.TickSizes[ticker]; ok {
		return v
	}
	return c.DefaultTickSize
}
