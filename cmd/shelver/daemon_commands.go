package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelver/internal/daemonctl"
	"shelver/internal/ipc"
	"shelver/internal/preflight"
)

const recentNoticeLimit = 8

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the shelver daemon and begin watching",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Watching %s\n", ctx.configValue().Paths.WatchDir)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop watching and terminate the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			grace := 5 * time.Second
			if cfg := ctx.configValue(); cfg != nil && cfg.StopTimeout() > 0 {
				grace = cfg.StopTimeout()
			}
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.Warning != "" {
				fmt.Fprintf(stdout, "Warning: %s; manual process termination may be required\n", result.Warning)
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, watch directory and history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg, ctx.socketPath())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			printSection(stdout, "Daemon", colorize)
			for _, line := range daemonLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			printSection(stdout, "System Checks", colorize)
			reg, regErr := cfg.Registry()
			if regErr != nil {
				return regErr
			}
			for _, result := range preflight.RunAll(cfg, reg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if statusResp.History != nil {
				fmt.Fprintln(stdout)
				printSection(stdout, "History", colorize)
				rows := buildCountRows(statusResp.History.ByCategory)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No files moved yet")
				} else {
					fmt.Fprintln(stdout, renderTable([]string{"Category", "Moved"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				if failed := statusResp.History.ByOutcome["failed"]; failed > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Failed moves", statusWarn, strconv.Itoa(failed), colorize))
				}
			}

			if statusResp.Running {
				if err := printRecentNotices(ctx, stdout, colorize); err != nil {
					return err
				}
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func daemonLines(status *ipc.StatusResponse, colorize bool) []string {
	if !status.Running {
		return []string{
			renderStatusLine("Shelver", statusError, "Not running", colorize),
			renderStatusLine("Watch directory", statusInfo, status.WatchDir, colorize),
			renderStatusLine("Categories", statusInfo, strconv.Itoa(status.Categories), colorize),
		}
	}

	lines := []string{
		renderStatusLine("Shelver", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
	}
	switch status.SessionState {
	case "running":
		lines = append(lines, renderStatusLine("Watcher", statusOK, "Watching "+status.WatchDir, colorize))
	default:
		lines = append(lines, renderStatusLine("Watcher", statusWarn, "Idle; run `shelver start` to resume", colorize))
	}
	lines = append(lines,
		renderStatusLine("Categories", statusInfo, strconv.Itoa(status.Categories), colorize),
		renderStatusLine("Sweep in progress", statusInfo, yesNo(status.Sweeping), colorize),
	)
	if sweep := status.LastSweep; sweep != nil {
		detail := fmt.Sprintf("%d files from %s at %s", sweep.Processed, sweep.Dir, sweep.FinishedAt.Local().Format(time.DateTime))
		kind := statusOK
		if sweep.Error != "" {
			kind = statusWarn
			detail += " (" + sweep.Error + ")"
		}
		lines = append(lines, renderStatusLine("Last sweep", kind, detail, colorize))
	}
	return lines
}

func printRecentNotices(ctx *commandContext, out io.Writer, colorize bool) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Notices(ipc.NoticesRequest{Limit: recentNoticeLimit})
		if err != nil {
			return err
		}
		if len(resp.Notices) == 0 {
			return nil
		}
		fmt.Fprintln(out)
		printSection(out, "Recent Activity", colorize)
		for _, notice := range resp.Notices {
			fmt.Fprintf(out, "%s%s  %s\n", statusIndent, notice.Timestamp.Local().Format(time.TimeOnly), notice.Message)
		}
		return nil
	})
}

func buildCountRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
