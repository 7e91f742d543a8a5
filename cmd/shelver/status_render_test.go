package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"shelver/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Shelver", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Shelver:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Shelver", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDaemonLinesIdleSession(t *testing.T) {
	status := &ipc.StatusResponse{
		Running:      true,
		SessionState: "idle",
		WatchDir:     "/data/inbox",
		Categories:   3,
		PID:          42,
		LastSweep: &ipc.SweepSummary{
			Dir:        "/data/inbox",
			Processed:  7,
			FinishedAt: time.Now(),
			Error:      "read failed",
		},
	}
	lines := daemonLines(status, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] Running (pid 42)") {
		t.Fatalf("unexpected daemon line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN] Idle") {
		t.Fatalf("expected idle watcher warning, got %q", lines[1])
	}
	if !strings.Contains(lines[4], "[WARN] 7 files from /data/inbox") || !strings.Contains(lines[4], "(read failed)") {
		t.Fatalf("unexpected last sweep line %q", lines[4])
	}
}

func TestDaemonLinesNotRunning(t *testing.T) {
	lines := daemonLines(&ipc.StatusResponse{WatchDir: "/data/inbox", Categories: 9}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] Not running") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestBuildCountRowsSorted(t *testing.T) {
	rows := buildCountRows(map[string]int{"PDFs": 2, "Images": 5})
	if len(rows) != 2 || rows[0][0] != "Images" || rows[0][1] != "5" || rows[1][0] != "PDFs" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" History ", false)
	if lines[0] != "== History ==" || lines[1] != strings.Repeat("-", len(lines[0])) {
		t.Fatalf("unexpected header %q", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestPrintListingSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", ".hidden", "a.png"} {
		if err := appendLine(dir+"/"+name, "x"); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	var sb strings.Builder
	if err := printListing(&sb, dir); err != nil {
		t.Fatalf("printListing: %v", err)
	}
	out := sb.String()
	if strings.Contains(out, ".hidden") {
		t.Fatalf("hidden file listed: %q", out)
	}
	if strings.Index(out, "a.png") > strings.Index(out, "b.txt") {
		t.Fatalf("expected sorted listing: %q", out)
	}
}
