// Package daemonrun hosts the daemon process: logging, history, IPC and
// signal handling around a daemon.Daemon.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"shelver/internal/config"
	"shelver/internal/daemon"
	"shelver/internal/history"
	"shelver/internal/ipc"
	"shelver/internal/logging"
	"shelver/internal/preflight"
	"shelver/internal/registry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the shelver daemon runtime loop and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shelver-%s.log", runStamp))
	sessionID := uuid.NewString()

	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.DaemonLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shelver.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "shelver-*.log", Exclude: []string{logPath}},
	)

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	logPreflight(logger, cfg, reg)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "history store unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, cfg.History.Path),
				logging.String(logging.FieldImpact, "moves are not recorded for shelver history"),
				logging.String(logging.FieldErrorHint, "check history.path permissions or disable history"),
			)
			store = nil
		}
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.watch_dir exists and rerun shelver start"),
			logging.String(logging.FieldImpact, "files are not sorted until watching starts"),
		)
	}

	<-signalCtx.Done()
	logger.Info("shelver daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logPreflight(logger *slog.Logger, cfg *config.Config, reg *registry.Registry) {
	for _, result := range preflight.RunAll(cfg, reg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "shelver may be unable to sort files"),
			logging.String(logging.FieldErrorHint, "run shelver status for details"),
		)
	}
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
