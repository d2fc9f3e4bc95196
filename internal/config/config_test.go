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
	cfg := defaults()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 4, cfg.SyncWorkers)
	assert.Equal(t, 5*time.Minute, cfg.SyncTimeout)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Empty(t, cfg.SecretKey)
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SECLENS_ADDR", ":9999")
	t.Setenv("SECLENS_SECRET_KEY", "test-master-key")
	t.Setenv("SECLENS_SYNC_WORKERS", "8")
	t.Setenv("SECLENS_SYNC_TIMEOUT", "90s")
	t.Setenv("SECLENS_SYNC_INTERVAL", "15m")

	cfg := defaults()
	applyEnv(cfg)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "test-master-key", cfg.SecretKey)
	assert.Equal(t, 8, cfg.SyncWorkers)
	assert.Equal(t, 90*time.Second, cfg.SyncTimeout)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
}

func TestApplyEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SECLENS_SYNC_WORKERS", "many")
	t.Setenv("SECLENS_SYNC_TIMEOUT", "soon")

	cfg := defaults()
	applyEnv(cfg)

	assert.Equal(t, 4, cfg.SyncWorkers)
	assert.Equal(t, 5*time.Minute, cfg.SyncTimeout)
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seclens.yaml")
	data := []byte("addr: \":7070\"\nsync_workers: 2\nsync_interval: 30m\nadmin_user: ops\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg := defaults()
	require.NoError(t, applyFile(cfg, path))

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 2, cfg.SyncWorkers)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "ops", cfg.AdminUser)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.SyncTimeout)
}

func TestApplyFileMissing(t *testing.T) {
	cfg := defaults()
	assert.Error(t, applyFile(cfg, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seclens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\n"), 0600))
	t.Setenv("SECLENS_ADDR", ":6060")

	cfg := defaults()
	require.NoError(t, applyFile(cfg, path))
	applyEnv(cfg)

	assert.Equal(t, ":6060", cfg.Addr)
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "a.yaml", configPath([]string{"-config", "a.yaml"}))
	assert.Equal(t, "b.yaml", configPath([]string{"--config=b.yaml", "-debug"}))
	assert.Equal(t, "", configPath([]string{"-addr", ":8080"}))

	t.Setenv("SECLENS_CONFIG", "env.yaml")
	assert.Equal(t, "env.yaml", configPath(nil))
}
