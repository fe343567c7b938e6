package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestLogger(t *testing.T) string {
	t.Helper()
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, Init(Options{Path: path}))
	return path
}

func TestInitAndWrite(t *testing.T) {
	path := initTestLogger(t)

	Get().Info("hello from the test", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
	assert.Contains(t, string(data), "key=value")
}

func TestInitIsIdempotent(t *testing.T) {
	path := initTestLogger(t)
	require.NoError(t, Init(Options{Path: filepath.Join(t.TempDir(), "other.log")}))

	Get().Info("still the first sink")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still the first sink")
}

func TestWithProcessAndComponent(t *testing.T) {
	path := initTestLogger(t)

	WithProcess("proc-42").Info("process scoped")
	WithComponent("broker").Info("component scoped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "processID=proc-42")
	assert.Contains(t, string(data), "component=broker")
}

func TestSetDebug(t *testing.T) {
	path := initTestLogger(t)

	Get().Debug("hidden at info level")
	SetDebug(true)
	Get().Debug("visible at debug level")
	SetDebug(false)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.False(t, strings.Contains(content, "hidden at info level"))
	assert.Contains(t, content, "visible at debug level")
}
