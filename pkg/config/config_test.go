package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(&DefaultSource{}))
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestManager_LoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
  format: json
history:
  backend: sqlite
scanner:
  target_timeout: 15s
`), 0o600))
	t.Setenv("VULNTOR_LOG_LEVEL", "info")

	m := NewManager()
	// Sources are sorted by priority regardless of argument order.
	require.NoError(t, m.Load(&EnvSource{}, &FileSource{Path: path}, &DefaultSource{}))

	cfg := m.Get()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, 15*time.Second, cfg.Scanner.TargetTimeout)
	assert.Equal(t, 1000, cfg.Scanner.QueueSize)
	assert.Equal(t, "sqlite", m.Keys()["history.backend"])
}

func TestManager_LoadInvalid(t *testing.T) {
	t.Setenv("VULNTOR_HISTORY_BACKEND", "postgres")

	m := NewManager()
	err := m.Load(&DefaultSource{}, &EnvSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	// The previous configuration is kept.
	assert.Equal(t, Config{}, m.Get())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	cfg.Scanner.Workers = 0
	assert.Error(t, Validate(cfg))

	cfg = DefaultConfig()
	cfg.Log.Format = "xml"
	assert.Error(t, Validate(cfg))
}
