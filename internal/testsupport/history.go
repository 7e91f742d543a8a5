package testsupport

import (
	"testing"

	"shelver/internal/config"
	"shelver/internal/history"
)

// MustOpenHistory opens the config's history store and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
