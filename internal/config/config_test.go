package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	cfg, err := finalize(Default())
	require.NoError(t, err)
	assert.Equal(t, ":8089", cfg.Server.Addr)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().ProcessorIntervalSeconds, cfg.ProcessorIntervalSeconds)
}

func TestLoad_OverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
processor_interval_seconds: 2
quote_ttl_seconds: 7200
pattern_ttl_seconds: 7200
large_size_threshold: 5000
tracked_idle_evict_seconds: 300
default_tick_size: 0.05
tick_sizes:
  AAPL: 0.01
server:
  addr: ":9090"
  rate_limit_per_minute: 60
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.ProcessorIntervalSeconds)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.01, cfg.TickSize("AAPL"))
	assert.Equal(t, 0.05, cfg.TickSize("MSFT"))
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
processor_interval_seconds: 1
quote_ttl_seconds: 3600
pattern_ttl_seconds: 3600
large_size_threshold: 10000
tracked_idle_evict_seconds: 600
default_tick_size: 0.01
server:
  addr: ":8089"
logging:
  level: verbose
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestProcessorInterval_ConvertsFractionalSeconds(t *testing.T) {
	cfg := Default()
	cfg.ProcessorIntervalSeconds = 0.5
	assert.Equal(t, 500_000_000.0, float64(cfg.ProcessorInterval()))
}
