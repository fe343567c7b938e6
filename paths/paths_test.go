package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	Reset()
	t.Cleanup(Reset)
	return home
}

func TestFreshInstallDefaultsToLegacy(t *testing.T) {
	home := setHome(t)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".agentflow"), dir)
	assert.True(t, IsLegacyLayout())

	data, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, data, "legacy layout is flat")
}

func TestExistingLegacyDirWinsOverXDG(t *testing.T) {
	home := setHome(t)
	legacy := filepath.Join(home, ".agentflow")
	require.NoError(t, os.MkdirAll(legacy, 0755))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg-config"))
	Reset()

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, legacy, dir)
	assert.True(t, IsLegacyLayout())
}

func TestXDGLayout(t *testing.T) {
	home := setHome(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	Reset()

	cfg, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cfg", "agentflow"), cfg)

	// unset XDG vars fall back to their spec defaults
	data, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "agentflow"), data)

	state, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "state", "agentflow"), state)
	assert.False(t, IsLegacyLayout())
}

func TestFilePaths(t *testing.T) {
	home := setHome(t)

	cfg, err := ConfigFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".agentflow", "config.yaml"), cfg)

	db, err := StoreFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".agentflow", "agentflow.db"), db)

	logs, err := LogsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".agentflow", "logs"), logs)
}
