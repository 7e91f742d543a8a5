package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shelver/internal/registry"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatcher()
	c.normalizeLogging()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeCategories()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SHELVER_WATCH_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WatchDir = value
	}
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		c.Paths.WatchDir = defaultWatchDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.WatchDir, err = expandPath(strings.TrimSpace(c.Paths.WatchDir)); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.SweepWorkers == 0 {
		c.Watcher.SweepWorkers = defaultSweepWorkers
	}
	if c.Watcher.StopTimeoutSeconds == 0 {
		c.Watcher.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeHistory() error {
	path := strings.TrimSpace(c.History.Path)
	if path == "" {
		c.History.Path = filepath.Join(c.Paths.LogDir, defaultHistoryFile)
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHELVER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeCategories() {
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = strings.TrimSpace(cat.Name)
		exts := make([]string, 0, len(cat.Extensions))
		for _, ext := range cat.Extensions {
			if folded := registry.NormalizeExtension(ext); folded != "" {
				exts = append(exts, folded)
			}
		}
		cat.Extensions = exts
	}
}
