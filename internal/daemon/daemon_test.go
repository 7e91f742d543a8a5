package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"shelver/internal/daemon"
	"shelver/internal/history"
	"shelver/internal/logging"
	"shelver/internal/testsupport"
)

func newDaemon(t *testing.T, store *history.Store, opts ...testsupport.ConfigOption) (*daemon.Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if store == nil && cfg.History.Enabled {
		store = testsupport.MustOpenHistory(t, cfg)
	}
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Stop()
	})
	return d, cfg.Paths.WatchDir
}

func TestDaemonStartStop(t *testing.T) {
	d, watchDir := newDaemon(t, nil)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || status.SessionState != "running" {
		t.Fatalf("expected running daemon, got %+v", status)
	}
	if status.RunID == "" || status.Categories != 9 || status.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !testsupport.Exists(filepath.Join(watchDir, "Images")) {
		t.Fatal("expected category directories to be created")
	}

	if err := d.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	status = d.Status(ctx)
	if status.Running || status.SessionState != "idle" {
		t.Fatalf("expected stopped daemon, got %+v", status)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	first, err := daemon.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = first.Stop()
		_ = second.Stop()
	})

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestDaemonStartFailureReleasesLock(t *testing.T) {
	d, watchDir := newDaemon(t, nil)
	if err := os.RemoveAll(watchDir); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail for missing watch directory")
	}
	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed once the directory exists: %v", err)
	}
}

func TestDaemonStartupSweepRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSweepOnStart(true))
	store := testsupport.MustOpenHistory(t, cfg)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchDir, "photo.jpg"), 16)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchDir, "notes.txt"), 16)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchDir, "mystery.bin"), 16)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Stop() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testsupport.Eventually(t, func() bool {
		last := d.Status(ctx).LastSweep
		return last != nil && last.Processed == 2
	})
	if !testsupport.Exists(filepath.Join(cfg.Paths.WatchDir, "Images", "photo.jpg")) {
		t.Fatal("expected photo.jpg to be moved into Images")
	}
	if !testsupport.Exists(filepath.Join(cfg.Paths.WatchDir, "mystery.bin")) {
		t.Fatal("expected unrecognized file to stay in place")
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %+v", entries)
	}
	for _, entry := range entries {
		if entry.Source != history.SourceSweep || entry.Outcome != "moved" || entry.RunID == "" {
			t.Fatalf("unexpected history entry: %+v", entry)
		}
	}

	notices, next, err := d.Notices(ctx, 0, 100, false)
	if err != nil {
		t.Fatalf("Notices: %v", err)
	}
	if next == 0 || len(notices) == 0 {
		t.Fatal("expected buffered notices")
	}
	var sawComplete bool
	for _, notice := range notices {
		if strings.HasPrefix(notice.Message, "Sweep of ") && strings.HasSuffix(notice.Message, "2 files processed") {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("expected sweep completion notice, got %+v", notices)
	}
}

func TestDaemonWatcherMovesNewFiles(t *testing.T) {
	d, watchDir := newDaemon(t, nil)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(watchDir, "song.mp3"), 32)
	testsupport.Eventually(t, func() bool {
		return testsupport.Exists(filepath.Join(watchDir, "Audio", "song.mp3"))
	})
	testsupport.Eventually(t, func() bool {
		status := d.Status(ctx)
		return status.History != nil && status.History.ByCategory["Audio"] == 1
	})
}

func TestDaemonSweepWhileStoppedNotifies(t *testing.T) {
	var requests atomic.Int32
	var title atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		title.Store(r.Header.Get("Title"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d, watchDir := newDaemon(t, nil, testsupport.WithNtfyTopic(srv.URL), testsupport.WithoutHistory())
	testsupport.WriteFile(t, filepath.Join(watchDir, "report.pdf"), 8)

	report, err := d.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Processed != 1 || report.Dir != watchDir || report.Error != "" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected one sweep notification, got %d", requests.Load())
	}
	if got, _ := title.Load().(string); !strings.Contains(got, "Sweep") {
		t.Fatalf("unexpected notification title %q", got)
	}
	if status := d.Status(context.Background()); status.Running || status.History != nil {
		t.Fatalf("unexpected status after idle sweep: %+v", status)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newDaemon(t, nil, testsupport.WithoutHistory())
	sent, message, err := d.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected no-op, got sent=%v err=%v", sent, err)
	}
	if message != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", message)
	}
}
