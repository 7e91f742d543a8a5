package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shelver/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The watch directory exists; the start-up sweep is off and the settle
// delay is short so tests observe moves quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "watch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "logs", "history.db")
	cfgVal.Watcher.SettleDelayMillis = 20
	cfgVal.Watcher.StopTimeoutSeconds = 2
	cfgVal.Watcher.SweepOnStart = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Paths.WatchDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithCategories replaces the category table.
func WithCategories(categories ...config.Category) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Categories = categories
	}
}

// WithSweepOnStart toggles the daemon's start-up sweep.
func WithSweepOnStart(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watcher.SweepOnStart = enabled
	}
}

// WithNtfyTopic points notifications at url, typically an httptest server.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
		b.cfg.Notifications.Sweeps = true
	}
}

// WithoutHistory disables the move history store.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WatchDir)
}
