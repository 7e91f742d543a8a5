package ipc

import "time"

// StartRequest asks the daemon to start watching.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops watching.
type StopRequest struct{}

// StopResponse indicates the stop result. Warning is set when the watcher did
// not confirm termination in time.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Warning string `json:"warning,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// SweepSummary describes the most recent backlog sweep.
type SweepSummary struct {
	Dir        string    `json:"dir"`
	Processed  int       `json:"processed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// HistorySummary aggregates recorded classification results.
type HistorySummary struct {
	Total      int            `json:"total"`
	ByOutcome  map[string]int `json:"by_outcome"`
	ByCategory map[string]int `json:"by_category"`
}

// StatusResponse represents daemon and session status.
type StatusResponse struct {
	Running      bool            `json:"running"`
	SessionState string          `json:"session_state"`
	WatchDir     string          `json:"watch_dir"`
	RunID        string          `json:"run_id"`
	Sweeping     bool            `json:"sweeping"`
	Categories   int             `json:"categories"`
	LockPath     string          `json:"lock_path"`
	HistoryPath  string          `json:"history_path"`
	LogPath      string          `json:"log_path"`
	PID          int             `json:"pid"`
	LastSweep    *SweepSummary   `json:"last_sweep,omitempty"`
	History      *HistorySummary `json:"history,omitempty"`
}

// SweepRequest runs a backlog sweep. An empty Dir sweeps the watch directory.
type SweepRequest struct {
	Dir string `json:"dir"`
}

// SweepResponse reports the sweep result.
type SweepResponse struct {
	Summary SweepSummary `json:"summary"`
}

// Notice is one session notice.
type Notice struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Message   string    `json:"msg"`
}

// NoticesRequest fetches notices newer than Since. With WaitMillis > 0 the
// call blocks up to that long for a new notice.
type NoticesRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_ms"`
}

// NoticesResponse returns notices and the sequence to resume from.
type NoticesResponse struct {
	Notices []Notice `json:"notices"`
	Next    uint64   `json:"next"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_ms"`
	Match      string `json:"match"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
