// Package config holds the user-facing configuration for agentflow.
//
// Config lives at ~/.agentflow/config.yaml (or the XDG equivalent, see
// the paths package). All fields have working zero-value defaults so a
// missing file is never an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/agentflow/paths"
)

// Defaults applied by Load when the corresponding field is unset.
const (
	// DefaultMaxRawLines caps the per-process raw output buffer.
	// Structured events are unbounded; raw lines are diagnostic noise
	// and only the tail is interesting.
	DefaultMaxRawLines = 1000

	// DefaultLogLevel is the slog level name used when unset.
	DefaultLogLevel = "info"
)

// Config holds the application configuration.
type Config struct {
	// Transport settings for socket-based deployments. Empty URL means
	// the caller wires an in-process broker instead.
	Transport TransportConfig `yaml:"transport,omitempty"`

	// Store settings for the message database.
	Store StoreConfig `yaml:"store,omitempty"`

	// Output settings for accumulated process output.
	Output OutputConfig `yaml:"output,omitempty"`

	// Log settings.
	Log LogConfig `yaml:"log,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// TransportConfig configures the upstream transport.
type TransportConfig struct {
	// URL of the websocket broadcaster, e.g. "ws://127.0.0.1:7171/ws".
	URL string `yaml:"url,omitempty"`
}

// StoreConfig configures the message store.
type StoreConfig struct {
	// Path to the SQLite database file. Empty uses paths.StoreFilePath.
	Path string `yaml:"path,omitempty"`
}

// OutputConfig configures output accumulation.
type OutputConfig struct {
	// MaxRawLines is the per-process cap on retained raw output lines.
	// Oldest lines are dropped first. Zero means DefaultMaxRawLines.
	MaxRawLines int `yaml:"max_raw_lines,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level,omitempty"` // "debug", "info", "warn", "error"
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Load reads the config from disk, or returns a default config if the
// file doesn't exist.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{filePath: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in zero-valued fields. Called during Load before
// the config is shared across goroutines, so no locking is needed.
func (c *Config) applyDefaults() {
	if c.Output.MaxRawLines <= 0 {
		c.Output.MaxRawLines = DefaultMaxRawLines
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Output.MaxRawLines < 0 {
		return fmt.Errorf("max_raw_lines must be non-negative, got %d", c.Output.MaxRawLines)
	}
	return nil
}

// StorePath returns the configured store path, falling back to the
// default location.
func (c *Config) StorePath() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	return paths.StoreFilePath()
}

// Save writes the config back to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write to temp file then rename for atomicity
	tmpPath := c.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, c.filePath)
}
