package config

import (
	"errors"
	"fmt"
	"strings"

	"shelver/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateCategories()
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchDir == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.LogDir == c.Paths.WatchDir {
		return errors.New("paths.log_dir must differ from paths.watch_dir")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.SettleDelayMillis < 0 {
		return errors.New("watcher.settle_delay_ms must be zero or positive")
	}
	if c.Watcher.StopTimeoutSeconds < 0 {
		return errors.New("watcher.stop_timeout_seconds must be positive")
	}
	if c.Watcher.SweepWorkers < 0 {
		return errors.New("watcher.sweep_workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateCategories() error {
	if len(c.Categories) == 0 {
		return errors.New("at least one [[categories]] entry is required")
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}
