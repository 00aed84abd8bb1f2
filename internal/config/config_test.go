package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 20, cfg.Memory.WorkingItems)
	assert.Equal(t, 1000, cfg.Memory.MaxTraces)
	assert.Equal(t, "json", cfg.Storage.Engine)
	assert.Equal(t, "127.0.0.1:7171", cfg.Addr())
	assert.Equal(t, 2000.0, cfg.Retrieval.TokenBudget)
	assert.True(t, cfg.Features.EnableWebSocket)
	assert.True(t, cfg.Features.Persistence)
	assert.True(t, cfg.Features.DriftMonitoring)
	assert.True(t, cfg.Features.Contradictions)
	assert.Equal(t, 20, cfg.Memory.ConsolidationEvery)
	assert.Equal(t, 10, cfg.Retrieval.MaxItems)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STRATA_PORT", "9999")
	t.Setenv("STRATA_STORAGE_ENGINE", "sqlite")
	t.Setenv("STRATA_TOKEN_BUDGET", "512.5")
	t.Setenv("STRATA_ENABLE_METRICS", "false")

	cfg := Load()
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, 512.5, cfg.Retrieval.TokenBudget)
	assert.False(t, cfg.Features.EnableMetrics)
}

func TestFeatureFlagEnvOverrides(t *testing.T) {
	t.Setenv("STRATA_ENABLE_DRIFT_MONITORING", "false")
	t.Setenv("STRATA_ENABLE_CONTRADICTIONS", "false")

	cfg := Load()
	assert.False(t, cfg.Features.DriftMonitoring)
	assert.False(t, cfg.Features.Contradictions)
	assert.True(t, cfg.Features.Persistence)
}

func TestUnparseableEnvFallsBack(t *testing.T) {
	t.Setenv("STRATA_PORT", "not-a-number")
	cfg := Load()
	assert.Equal(t, 7171, cfg.Server.Port)
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strata.yaml")
	content := []byte(`
memory:
  working_items: 40
storage:
  engine: sqlite
  data_path: /var/lib/strata
server:
  port: 8080
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Memory.WorkingItems)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "/var/lib/strata", cfg.Storage.DataPath)
	assert.Equal(t, 8080, cfg.Server.Port)
	// Untouched fields keep defaults.
	assert.Equal(t, 1000, cfg.Memory.MaxTraces)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))
	t.Setenv("STRATA_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Load()
	cfg.Storage.Engine = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Retrieval.Tokenizer = "wordpiece"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Retrieval.TokenBudget = -1
	assert.Error(t, cfg.Validate())
}
