package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	t.Setenv("SESSION_TOKEN", "abcd1234efgh5678")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 5*time.Second, cfg.SeedTimeout)
	assert.Equal(t, 9090, cfg.PrometheusPort)
	assert.True(t, cfg.EnableTUI)
	assert.Equal(t, "abcd****5678", cfg.MaskedSessionToken())
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLUSH_INTERVAL", "100ms")
	t.Setenv("PROMETHEUS_PORT", "0")
	t.Setenv("ENABLE_TUI", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.FlushInterval)
	assert.Zero(t, cfg.PrometheusPort)
	assert.False(t, cfg.EnableTUI)
	assert.Equal(t, "(not set)", cfg.MaskedSessionToken())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=DEBUG\nBURST_COUNT=5\n"), 0o600))
	t.Chdir(dir)
	// godotenv does not override variables already set
	t.Setenv("BURST_COUNT", "7")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 7, cfg.BurstCount)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	cases := map[string]string{
		"HEARTBEAT_TIMEOUT": "1s",
		"BACKOFF_CAP":       "100ms",
		"PROMETHEUS_PORT":   "70000",
		"LOG_LEVEL":         "TRACE",
		"FLUSH_INTERVAL":    "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestMaskedSessionTokenCookie(t *testing.T) {
	cfg := &Config{SessionCookie: "auth-token=xyz"}
	assert.Equal(t, "(from cookie)", cfg.MaskedSessionToken())

	cfg = &Config{SessionToken: "short"}
	assert.Equal(t, "****", cfg.MaskedSessionToken())
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()

	panels, err := LoadLayout(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPanels(), panels)

	path := filepath.Join(dir, "layout.yaml")
	yml := `
panels:
  - id: wallets
    defaultSize: {width: 500, height: 600}
    snapWidth: 420
    snapThreshold: 30
  - id: holdings
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	panels, err = LoadLayout(path)
	require.NoError(t, err)
	require.Len(t, panels, 2)
	assert.Equal(t, "wallets", panels[0].ID)
	assert.Equal(t, 500.0, panels[0].DefaultSize.Width)
	assert.Equal(t, 420.0, panels[0].SnapWidth)
	assert.Equal(t, 30.0, panels[0].SnapThreshold)

	dup := "panels:\n  - id: a\n  - id: a\n"
	require.NoError(t, os.WriteFile(path, []byte(dup), 0o600))
	_, err = LoadLayout(path)
	assert.ErrorContains(t, err, "duplicate panel")

	require.NoError(t, os.WriteFile(path, []byte("panels: [\n"), 0o600))
	_, err = LoadLayout(path)
	assert.Error(t, err)
}
