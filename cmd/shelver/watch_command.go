package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/ipc"
	"shelver/internal/session"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Watch a directory in the foreground until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			base := cfg.Paths.WatchDir
			if len(args) == 1 {
				if base, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve watch directory: %w", err)
				}
			}
			if status := daemonStatus(ctx.socketPath()); status != nil && status.SessionState == session.Running.String() && sameDir(status.WatchDir, base) {
				return fmt.Errorf("daemon (pid %d) is already watching %s; stop it first with `shelver stop`", status.PID, base)
			}
			return runForegroundWatch(cmd, ctx, cfg, base, !noSweep)
		},
	}
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "Skip the initial sweep of files already in the directory")
	return cmd
}

func runForegroundWatch(cmd *cobra.Command, cmdCtx *commandContext, cfg *config.Config, base string, sweepFirst bool) error {
	logger, err := cmdCtx.cliLogger(cfg)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	recorder, closeRecorder := openRecorder(cfg, logger)
	defer closeRecorder()

	out := cmd.OutOrStdout()
	sess := session.New(reg, printSink(out),
		session.WithLogger(logger),
		session.WithSettleDelay(cfg.SettleDelay()),
		session.WithSweepWorkers(cfg.Watcher.SweepWorkers),
		session.WithRecorder(recorder),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(base); err != nil {
		return err
	}
	if sweepFirst {
		if _, err := sess.SweepBacklog(ctx, base); err != nil {
			fmt.Fprintf(out, "Sweep incomplete: %v\n", err)
		}
	}
	if err := printListing(out, base); err != nil {
		fmt.Fprintf(out, "Could not list %s: %v\n", base, err)
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Fprintln(out)

	err = sess.Stop(cfg.StopTimeout())
	var warning *session.StopWarning
	if errors.As(err, &warning) {
		fmt.Fprintf(out, "Warning: %v\n", warning)
		return nil
	}
	if errors.Is(err, session.ErrNotRunning) {
		return nil
	}
	return err
}

// printListing shows the non-hidden entries of dir, directories first.
func printListing(out io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var dirs, files []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, name+"/")
			continue
		}
		files = append(files, name)
	}
	sort.Strings(dirs)
	sort.Strings(files)

	fmt.Fprintf(out, "Contents of %s:\n", dir)
	if len(dirs)+len(files) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return nil
	}
	for _, name := range append(dirs, files...) {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

// daemonStatus returns nil when no daemon answers on socket.
func daemonStatus(socket string) *ipc.StatusResponse {
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return nil
	}
	return status
}

func sameDir(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && filepath.Clean(absA) == filepath.Clean(absB)
}
