package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shelver/internal/ipc"
	"shelver/internal/logs"
)

const (
	followWait  = time.Second
	idleBackoff = 250 * time.Millisecond
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var match string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		Long: "Print the tail of the daemon log. The running daemon serves the lines;\n" +
			"when it is offline the log file is read directly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tail := directTail(cfg.DaemonLogPath())
			if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
				defer client.Close()
				tail = daemonTail(client)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamLogs(runCtx, cmd.OutOrStdout(), tail, logs.TailOptions{
				Offset: -1,
				Limit:  lines,
				Follow: follow,
				Match:  match,
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().StringVar(&match, "match", "", "Only show lines containing this text")
	return cmd
}

type tailFunc func(ctx context.Context, opts logs.TailOptions) (logs.TailResult, error)

func directTail(path string) tailFunc {
	return func(ctx context.Context, opts logs.TailOptions) (logs.TailResult, error) {
		return logs.Tail(ctx, path, opts)
	}
}

func daemonTail(client *ipc.Client) tailFunc {
	return func(_ context.Context, opts logs.TailOptions) (logs.TailResult, error) {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     opts.Offset,
			Limit:      opts.Limit,
			Follow:     opts.Follow,
			WaitMillis: int(opts.Wait / time.Millisecond),
			Match:      opts.Match,
		})
		if err != nil {
			return logs.TailResult{}, err
		}
		return logs.TailResult{Lines: resp.Lines, Offset: resp.Offset}, nil
	}
}

func streamLogs(ctx context.Context, out io.Writer, tail tailFunc, opts logs.TailOptions) error {
	for {
		result, err := tail(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
		if !opts.Follow || ctx.Err() != nil {
			return nil
		}
		opts.Offset = result.Offset
		opts.Limit = 0
		opts.Wait = followWait
		if len(result.Lines) == 0 {
			// A missing log file returns at once.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleBackoff):
			}
		}
	}
}
