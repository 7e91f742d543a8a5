package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/events"
	"shelver/internal/ipc"
	"shelver/internal/session"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var local bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sort the files already sitting in the watch directory",
		Long: "Classify every regular, non-hidden file directly inside the directory once.\n" +
			"By default the running daemon performs the sweep; --local runs it in this process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(dir)
			if target != "" {
				if target, err = config.ExpandPath(target); err != nil {
					return fmt.Errorf("resolve sweep directory: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			if local {
				if target == "" {
					target = cfg.Paths.WatchDir
				}
				return runLocalSweep(cmd.Context(), ctx, cfg, target, out)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sweep(target)
				if err != nil {
					return err
				}
				return printSweepSummary(out, resp.Summary)
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to sweep (defaults to paths.watch_dir)")
	cmd.Flags().BoolVar(&local, "local", false, "Run the sweep in-process instead of asking the daemon")
	return cmd
}

func runLocalSweep(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, dir string, out io.Writer) error {
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

	sess := session.New(reg, printSink(out),
		session.WithLogger(logger),
		session.WithSweepWorkers(cfg.Watcher.SweepWorkers),
		session.WithRecorder(recorder),
	)
	started := time.Now()
	processed, err := sess.SweepBacklog(ctx, dir)
	summary := ipc.SweepSummary{Dir: dir, Processed: processed, StartedAt: started, FinishedAt: time.Now()}
	var sweepErr *session.SweepError
	if errors.As(err, &sweepErr) {
		summary.Error = sweepErr.Error()
		err = nil
	}
	if err != nil {
		return err
	}
	return printSweepSummary(out, summary)
}

func printSweepSummary(out io.Writer, summary ipc.SweepSummary) error {
	if summary.Error != "" {
		return fmt.Errorf("sweep of %s stopped after %d files: %s", summary.Dir, summary.Processed, summary.Error)
	}
	elapsed := summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(out, "Swept %s: %d files processed in %s\n", summary.Dir, summary.Processed, elapsed)
	return nil
}

// printSink writes each notice on its own line. Sweep workers call it
// concurrently.
func printSink(out io.Writer) events.Sink {
	var mu sync.Mutex
	return events.SinkFunc(func(message string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, message)
	})
}
