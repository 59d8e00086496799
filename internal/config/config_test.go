package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
env: test
service: shopcore-test

http:
  addr: ":9090"
  shutdown_timeout: 5s

ledger:
  backend: redis
  redis_addr: "redis:6379"

orders:
  backend: memory

sweeper:
  interval: 30s
  pending_timeout: 10m

gateway:
  simulator_enabled: true
  success_rate: 0.5
  delay: 1s

seed:
  - id: "p1"
    name: "widget"
    price: 1500
    stock: 7
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg := MustLoad()

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "redis", cfg.Ledger.Backend)
	assert.Equal(t, "redis:6379", cfg.Ledger.Redis)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Sweeper.PendingTimeout)
	assert.True(t, cfg.Gateway.SimulatorEnabled)
	assert.InDelta(t, 0.5, cfg.Gateway.SuccessRate, 1e-9)

	require.Len(t, cfg.Seed, 1)
	assert.Equal(t, "p1", cfg.Seed[0].ID)
	assert.Equal(t, int64(1500), cfg.Seed[0].Price)
	assert.Equal(t, 7, cfg.Seed[0].Stock)
}

func TestMustLoad_DefaultsFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("LEDGER_BACKEND", "memory")

	cfg := MustLoad()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.PendingTimeout)
}
