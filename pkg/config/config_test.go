package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1*time.Second, cfg.Scheduler.TickInterval.D())
	assert.Equal(t, 10, cfg.Scheduler.MaxConcurrentPerNode)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.CheckInterval.D())
	assert.Equal(t, 120*time.Second, cfg.Heartbeat.Timeout.D())
	assert.Equal(t, 0.5, cfg.Jobs.FailureThreshold)
	assert.Equal(t, 0.3, cfg.Scoring.CPUFree)
	assert.Equal(t, ":9400", cfg.API.ListenAddr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridmesh.yaml")
	body := `
scheduler:
  tick_interval: 250ms
  max_concurrent_per_node: 4
heartbeat:
  timeout: 45s
retry:
  backoff: 2s
scoring:
  region_affinity: 50
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.TickInterval.D())
	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrentPerNode)
	assert.Equal(t, 45*time.Second, cfg.Heartbeat.Timeout.D())
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff.D())
	assert.Equal(t, float64(50), cfg.Scoring.RegionAffinity)

	// Untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.CheckInterval.D())
	assert.Equal(t, 0.2, cfg.Scoring.MemoryFree)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/gridmesh.yaml")
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  tick_interval: nonsense\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
