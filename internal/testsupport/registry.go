package testsupport

import (
	"testing"

	"shelver/internal/registry"
)

// NewRegistry builds a registry from categories, or from a small
// Images/Documents/Audio table when none are given.
func NewRegistry(t testing.TB, categories ...registry.Category) *registry.Registry {
	t.Helper()

	if len(categories) == 0 {
		categories = []registry.Category{
			{Name: "Images", Extensions: []string{"jpg", "png"}},
			{Name: "Documents", Extensions: []string{"pdf", "txt"}},
			{Name: "Audio", Extensions: []string{"mp3"}},
		}
	}
	reg, err := registry.Build(categories)
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}
	return reg
}
