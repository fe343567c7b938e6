package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRawLines, cfg.Output.MaxRawLines)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Empty(t, cfg.Transport.URL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
transport:
  url: ws://127.0.0.1:7171/ws
store:
  path: /tmp/custom.db
output:
  max_raw_lines: 50
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:7171/ws", cfg.Transport.URL)
	assert.Equal(t, 50, cfg.Output.MaxRawLines)
	assert.Equal(t, "debug", cfg.Log.Level)

	storePath, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", storePath)
}

func TestLoadFromRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))
	_, err = LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	cfg.Transport.URL = "ws://localhost:9000/ws"

	require.NoError(t, cfg.Save())

	reloaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/ws", reloaded.Transport.URL)
}
