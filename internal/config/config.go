package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"shelver/internal/registry"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir string `toml:"watch_dir"`
	LogDir   string `toml:"log_dir"`
}

// Watcher contains configuration for the watch session.
type Watcher struct {
	SettleDelayMillis  int  `toml:"settle_delay_ms"`
	StopTimeoutSeconds int  `toml:"stop_timeout_seconds"`
	SweepOnStart       bool `toml:"sweep_on_start"`
	SweepWorkers       int  `toml:"sweep_workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History contains configuration for the move audit store.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	MoveFailures   bool   `toml:"move_failures"`
	Sweeps         bool   `toml:"sweeps"`
	WatcherErrors  bool   `toml:"watcher_errors"`
}

// Category is one [[categories]] table.
type Category struct {
	Name       string   `toml:"name"`
	Extensions []string `toml:"extensions"`
}

// Config encapsulates all configuration values for shelver.
//
// Configuration sections by subsystem:
//   - Paths: watched directory and log directory
//   - Watcher: settle delay, stop timeout and start-up sweep
//   - Logging: log format, level, and retention
//   - History: sqlite move audit log
//   - Notifications: ntfy push notification settings
//   - Categories: ordered category table; the first category listing an
//     extension owns it
type Config struct {
	Paths         Paths         `toml:"paths"`
	Watcher       Watcher       `toml:"watcher"`
	Logging       Logging       `toml:"logging"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Categories    []Category    `toml:"categories"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelver/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// A file that lists categories replaces the default table entirely.
		cfg.Categories = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Categories) == 0 {
			cfg.Categories = DefaultCategories()
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. The
// watch directory is never created here; a missing one is a start error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, filepath.Dir(c.History.Path)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Registry builds the extension registry from the category table.
func (c *Config) Registry() (*registry.Registry, error) {
	cats := make([]registry.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		cats = append(cats, registry.Category{Name: cat.Name, Extensions: cat.Extensions})
	}
	reg, err := registry.Build(cats)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	return reg, nil
}

// SettleDelay returns the watcher settle delay.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Watcher.SettleDelayMillis) * time.Millisecond
}

// StopTimeout returns the bounded wait used when stopping the watcher.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Watcher.StopTimeoutSeconds) * time.Second
}

// SocketPath returns the daemon's IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "shelver.sock")
}

// LockPath returns the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "shelver.lock")
}

// DaemonLogPath returns the file the daemon writes its structured log to.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "shelver.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return sb.String(), nil
}
