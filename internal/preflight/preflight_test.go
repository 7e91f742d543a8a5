package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelver/internal/config"
	"shelver/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Build([]registry.Category{{Name: "Images"}, {Name: "PDFs"}})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCategoryDirs(t *testing.T) {
	base := t.TempDir()
	reg := testRegistry(t)

	if r := CheckCategoryDirs(reg, base); !r.Passed || !strings.Contains(r.Detail, "0 of 2") {
		t.Fatalf("expected missing dirs to pass, got %+v", r)
	}
	if err := os.Mkdir(filepath.Join(base, "Images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "PDFs"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckCategoryDirs(reg, base); r.Passed || !strings.Contains(r.Detail, "PDFs") {
		t.Fatalf("expected blocked PDFs, got %+v", r)
	}
}

func TestCheckSameFilesystem(t *testing.T) {
	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "Images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if r := CheckSameFilesystem(testRegistry(t), base); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r := CheckSameFilesystem(testRegistry(t), filepath.Join(base, "missing")); r.Passed {
		t.Fatal("expected failure for missing base")
	}
}

func TestCheckInotifyWatches(t *testing.T) {
	dir := t.TempDir()
	low := filepath.Join(dir, "low")
	high := filepath.Join(dir, "high")
	if err := os.WriteFile(low, []byte("1024\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(high, []byte("524288\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckInotifyWatches(low); r.Passed {
		t.Fatalf("expected low limit to fail, got %+v", r)
	}
	if r := CheckInotifyWatches(high); !r.Passed {
		t.Fatalf("expected high limit to pass, got %+v", r)
	}
	if r := CheckInotifyWatches(filepath.Join(dir, "absent")); !r.Passed {
		t.Fatalf("expected unknown limit to pass, got %+v", r)
	}
}

func TestRunAll(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(root, "watch")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.LogDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	results := RunAll(&cfg, testRegistry(t))
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, r := range results[:4] {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}
	if RunAll(nil, nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
