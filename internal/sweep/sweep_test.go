package sweep_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"shelver/internal/classifier"
	"shelver/internal/events"
	"shelver/internal/registry"
	"shelver/internal/sweep"
)

func newScanner(t *testing.T, sink events.Sink, opts ...sweep.Option) *sweep.Scanner {
	t.Helper()
	reg, err := registry.Build([]registry.Category{
		{Name: "Images", Extensions: []string{"jpg"}},
		{Name: "PDFs", Extensions: []string{"pdf"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return sweep.New(reg, classifier.New(reg, sink), sink, opts...)
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScanScenarioAndIdempotence(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"a.jpg", "b.pdf", "c.txt"} {
		touch(t, filepath.Join(base, name))
	}
	var rec events.Recorder
	s := newScanner(t, &rec)

	count, err := s.Scan(context.Background(), base)
	if err != nil || count != 2 {
		t.Fatalf("first sweep: count=%d err=%v", count, err)
	}
	for _, path := range []string{
		filepath.Join(base, "Images", "a.jpg"),
		filepath.Join(base, "PDFs", "b.pdf"),
		filepath.Join(base, "c.txt"),
	} {
		if !exists(path) {
			t.Fatalf("expected %s to exist", path)
		}
	}

	count, err = s.Scan(context.Background(), base)
	if err != nil || count != 0 {
		t.Fatalf("second sweep: count=%d err=%v", count, err)
	}
}

func TestScanSkipsIneligibleEntries(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, ".hidden.jpg"))
	touch(t, filepath.Join(base, "Images", "already.jpg"))
	touch(t, filepath.Join(base, "nested", "deep.jpg"))
	if err := os.Mkdir(filepath.Join(base, "folder.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(base, "target.pdf"))
	if err := os.Symlink(filepath.Join(base, "target.pdf"), filepath.Join(base, "link.pdf")); err != nil {
		t.Fatal(err)
	}

	count, err := newScanner(t, nil).Scan(context.Background(), base)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only target.pdf processed, got %d", count)
	}
	for _, path := range []string{
		filepath.Join(base, ".hidden.jpg"),
		filepath.Join(base, "Images", "already.jpg"),
		filepath.Join(base, "nested", "deep.jpg"),
		filepath.Join(base, "folder.pdf"),
		filepath.Join(base, "PDFs", "target.pdf"),
	} {
		if !exists(path) {
			t.Fatalf("expected %s to exist", path)
		}
	}
	if exists(filepath.Join(base, "Images", "already_0.jpg")) {
		t.Fatal("file inside category dir was reclassified")
	}
}

func TestScanManyFilesAcrossBatches(t *testing.T) {
	base := t.TempDir()
	const n = 300
	for i := range n {
		touch(t, filepath.Join(base, fmt.Sprintf("img%03d.jpg", i)))
	}
	count, err := newScanner(t, nil, sweep.WithWorkers(2)).Scan(context.Background(), base)
	if err != nil || count != n {
		t.Fatalf("count=%d err=%v", count, err)
	}
	entries, err := os.ReadDir(filepath.Join(base, "Images"))
	if err != nil || len(entries) != n {
		t.Fatalf("expected %d images, got %d (err=%v)", n, len(entries), err)
	}
}

func TestScanMissingBaseReturnsSweepError(t *testing.T) {
	var rec events.Recorder
	_, err := newScanner(t, &rec).Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	var sweepErr *sweep.SweepError
	if !errors.As(err, &sweepErr) {
		t.Fatalf("expected SweepError, got %v", err)
	}
	if sweepErr.Processed != 0 || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected sweep error %+v", sweepErr)
	}
}

func TestScanStopsDispatchOnCancel(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "a.jpg"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := newScanner(t, nil).Scan(ctx, base)
	if !errors.Is(err, context.Canceled) || count != 0 {
		t.Fatalf("expected cancellation with no work, got count=%d err=%v", count, err)
	}
	if !exists(filepath.Join(base, "a.jpg")) {
		t.Fatal("file moved after cancellation")
	}
}
