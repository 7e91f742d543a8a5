// Package daemonctl launches, reaches and stops the background daemon on
// behalf of CLI commands.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"shelver/internal/config"
	"shelver/internal/history"
	"shelver/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	Warning          string
	Terminated       bool
	ForcedKill       bool
	PID              int
}

// Launch starts a detached shelver daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches and/or starts the daemon and returns the resulting state.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if status, statusErr := client.Status(); statusErr == nil && status.Running && status.SessionState == "running" {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	case strings.EqualFold(message, "daemon already running"):
		return StartResult{State: StartStateAlreadyRunning, Launched: launched, Message: message}, nil
	case message != "":
		return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}, nil
}

// WaitForShutdown waits until the daemon's socket stops answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		alive, _, err := ProcessInfo(socketPath)
		if err == nil && !alive {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon did not exit within %s", timeout)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// StopAndTerminate stops watching, then asks the daemon process to exit with
// SIGTERM. A process still answering after gracePeriod is killed and its
// socket removed.
func StopAndTerminate(socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	var result StopResult
	if status, statusErr := client.Status(); statusErr == nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp.Stopped
	result.Warning = resp.Warning

	if result.PID <= 0 || result.PID == os.Getpid() {
		return result, nil
	}
	if err := unix.Kill(result.PID, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", result.PID, err)
	}
	result.Terminated = true
	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}

	if err := unix.Kill(result.PID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", result.PID, err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	return result, nil
}

// BuildStatusSnapshot returns the daemon's status, or an offline snapshot
// assembled from configuration and the history database when the daemon is
// not reachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, socketPath string) (*ipc.StatusResponse, error) {
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		return client.Status()
	}
	if !isDaemonUnavailable(err) {
		return nil, err
	}

	snapshot := &ipc.StatusResponse{
		SessionState: "idle",
		WatchDir:     cfg.Paths.WatchDir,
		LockPath:     cfg.LockPath(),
		LogPath:      cfg.DaemonLogPath(),
	}
	if reg, regErr := cfg.Registry(); regErr == nil {
		snapshot.Categories = reg.Len()
	}
	if !cfg.History.Enabled {
		return snapshot, nil
	}
	snapshot.HistoryPath = cfg.History.Path
	if _, statErr := os.Stat(cfg.History.Path); statErr != nil {
		return snapshot, nil
	}
	store, openErr := history.Open(cfg.History.Path)
	if openErr != nil {
		return snapshot, nil
	}
	defer store.Close()
	if summary, sumErr := store.Summary(ctx); sumErr == nil {
		snapshot.History = &ipc.HistorySummary{
			Total:      summary.Total,
			ByOutcome:  summary.ByOutcome,
			ByCategory: summary.ByCategory,
		}
	}
	return snapshot, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, unix.ENOENT) ||
		errors.Is(err, unix.ECONNREFUSED)
}
