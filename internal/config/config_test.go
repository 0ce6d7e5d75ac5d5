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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "codex.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.CascadeDepth)
	assert.Equal(t, 8192, cfg.ModelLimit)
	assert.Equal(t, 0.5, cfg.ContextReserve)
	assert.Equal(t, 2*time.Second, cfg.ScanDebounce)
	assert.Equal(t, 5*time.Second, cfg.ContextTimeout)

	ctxCfg := cfg.Context()
	assert.Equal(t, 1, ctxCfg.Depth)
	assert.Equal(t, 8192, ctxCfg.ModelLimit)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CODEX_CASCADE_DEPTH", "3")
	t.Setenv("CODEX_MODEL_LIMIT", "128000")
	t.Setenv("CODEX_SCAN_DEBOUNCE", "500ms")
	t.Setenv("CODEX_LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.CascadeDepth)
	assert.Equal(t, 128000, cfg.ModelLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.ScanDebounce)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CODEX_CONTEXT_RESERVE=0.25\nCODEX_LOG_LEVEL=debug\n"), 0o600))
	// godotenv writes into the process environment.
	t.Cleanup(func() {
		os.Unsetenv("CODEX_CONTEXT_RESERVE")
		os.Unsetenv("CODEX_LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.ContextReserve)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CODEX_CONTEXT_RESERVE", "1.5")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadRejectsUnparsable(t *testing.T) {
	t.Setenv("CODEX_MODEL_LIMIT", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{LogFormat: "console", ContextReserve: 0.5}
	require.NoError(t, valid.Validate())

	cases := map[string]Config{
		"negative depth":   {LogFormat: "console", CascadeDepth: -1},
		"negative limit":   {LogFormat: "console", ModelLimit: -1},
		"reserve too high": {LogFormat: "console", ContextReserve: 2},
		"negative timeout": {LogFormat: "console", ContextTimeout: -time.Second},
		"unknown format":   {LogFormat: "xml"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}
