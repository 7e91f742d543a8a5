package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"shelver/internal/history"
	"shelver/internal/testsupport"
)

func TestIsDaemonUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "missing socket", err: fmt.Errorf("dial: %w", unix.ENOENT), want: true},
		{name: "refused", err: fmt.Errorf("dial: %w", unix.ECONNREFUSED), want: true},
		{name: "not exist", err: os.ErrNotExist, want: true},
		{name: "permission", err: unix.EACCES, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDaemonUnavailable(tt.err); got != tt.want {
				t.Fatalf("isDaemonUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestProcessInfoWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "shelver.sock")
	alive, pid, err := ProcessInfo(socket)
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected offline daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}
	if err := WaitForShutdown(socket, 100*time.Millisecond); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
	if _, err := StopAndTerminate(socket, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "shelver.sock")
	if _, err := WaitForClient(socket, 250*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestLaunchRejectsEmptyExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	if _, err := store.Record(context.Background(), history.Entry{
		Source: history.SourceSweep, Outcome: "moved", Path: "/w/a.jpg", Category: "Images",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	snapshot, err := BuildStatusSnapshot(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running || snapshot.SessionState != "idle" || snapshot.WatchDir != cfg.Paths.WatchDir {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
	if snapshot.Categories != 9 {
		t.Fatalf("expected default categories, got %d", snapshot.Categories)
	}
	if snapshot.History == nil || snapshot.History.ByCategory["Images"] != 1 {
		t.Fatalf("expected history summary, got %#v", snapshot.History)
	}
}
