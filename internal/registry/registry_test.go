package registry_test

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"shelver/internal/registry"
)

func build(t *testing.T, cats ...registry.Category) *registry.Registry {
	t.Helper()
	reg, err := registry.Build(cats)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

func TestLookupIgnoresCase(t *testing.T) {
	reg := build(t,
		registry.Category{Name: "Images", Extensions: []string{"jpg", "PNG"}},
		registry.Category{Name: "PDFs", Extensions: []string{".pdf"}},
	)
	tests := []struct {
		ext  string
		want string
		ok   bool
	}{
		{"jpg", "Images", true},
		{"JPG", "Images", true},
		{".Jpg", "Images", true},
		{"png", "Images", true},
		{"PDF", "PDFs", true},
		{"txt", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := reg.Lookup(tc.ext)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tc.ext, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFirstRegisteredCategoryWins(t *testing.T) {
	reg := build(t,
		registry.Category{Name: "Datasets", Extensions: []string{"csv", "xls", "xlsx"}},
		registry.Category{Name: "Documents", Extensions: []string{"doc", "xlsx", "XLS"}},
	)
	for _, ext := range []string{"xls", "XLSX"} {
		if got, _ := reg.Lookup(ext); got != "Datasets" {
			t.Fatalf("Lookup(%q) = %q, want Datasets", ext, got)
		}
	}
	if got, _ := reg.Lookup("doc"); got != "Documents" {
		t.Fatalf("Lookup(doc) = %q", got)
	}
	shadowed := reg.Shadowed()
	if len(shadowed) != 2 {
		t.Fatalf("expected 2 shadowed extensions, got %+v", shadowed)
	}
	if shadowed[0] != (registry.Shadow{Extension: "xlsx", Owner: "Datasets", Shadowed: "Documents"}) {
		t.Fatalf("unexpected shadow entry %+v", shadowed[0])
	}
	if exts := reg.Extensions("Documents"); !slices.Equal(exts, []string{"doc", "xlsx", "xls"}) {
		t.Fatalf("Extensions(Documents) = %v", exts)
	}
}

func TestBuildRejectsMalformedCategories(t *testing.T) {
	tests := []struct {
		name string
		cats []registry.Category
		want error
	}{
		{"duplicate", []registry.Category{{Name: "Images"}, {Name: "images"}}, registry.ErrDuplicateCategory},
		{"empty", []registry.Category{{Name: "  "}}, registry.ErrInvalidCategory},
		{"separator", []registry.Category{{Name: "a/b"}}, registry.ErrInvalidCategory},
		{"dot", []registry.Category{{Name: ".hidden"}}, registry.ErrInvalidCategory},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := registry.Build(tc.cats); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCategoriesPreserveOrder(t *testing.T) {
	reg := build(t,
		registry.Category{Name: "Videos"},
		registry.Category{Name: "Audio"},
		registry.Category{Name: "Code"},
	)
	if got := slices.Collect(reg.Categories()); !slices.Equal(got, []string{"Videos", "Audio", "Code"}) {
		t.Fatalf("Categories() = %v", got)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len() = %d", reg.Len())
	}
	for name := range reg.Categories() {
		if name != "Videos" {
			t.Fatalf("early break yielded %q", name)
		}
		break
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":         "jpg",
		"Photo.JPG":         "jpg",
		"archive.tar.gz":    "gz",
		"README":            "",
		".bashrc":           "",
		"trailing.":         "",
		"/tmp/dir.d/file":   "",
		"/tmp/x/report.CSV": "csv",
	}
	for name, want := range tests {
		if got := registry.Extension(name); got != want {
			t.Errorf("Extension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestHasRecognizedSuffix(t *testing.T) {
	reg := build(t, registry.Category{Name: "Images", Extensions: []string{"jpg"}})
	if !reg.HasRecognizedSuffix("Photo.JPG") || !reg.HasRecognizedSuffix("photo.jpg") {
		t.Fatal("expected jpg recognized regardless of case")
	}
	if reg.HasRecognizedSuffix("archive.xyz") || reg.HasRecognizedSuffix(".jpg") {
		t.Fatal("unexpected recognition")
	}
}

func TestCategoryDirectoryChecks(t *testing.T) {
	reg := build(t, registry.Category{Name: "Images", Extensions: []string{"jpg"}})
	base := t.TempDir()
	images := filepath.Join(base, "Images")

	if !reg.IsCategoryDir(base, images) {
		t.Fatal("expected Images to be a category dir")
	}
	if reg.IsCategoryDir(base, filepath.Join(base, "Other")) || reg.IsCategoryDir(base, filepath.Join(images, "Images")) {
		t.Fatal("unexpected category dir match")
	}
	if !reg.InCategoryDir(base, filepath.Join(images, "a.jpg")) || !reg.InCategoryDir(base, filepath.Join(images, "nested", "b.jpg")) {
		t.Fatal("expected files under Images to be inside a category dir")
	}
	if reg.InCategoryDir(base, filepath.Join(base, "a.jpg")) || reg.InCategoryDir(base, filepath.Join(base, "sub", "a.jpg")) {
		t.Fatal("unexpected InCategoryDir match")
	}
}
