package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"shelver/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded moves and failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "History is disabled (history.enabled = false)")
				return nil
			}
			if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No history recorded yet")
				return nil
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, historyRow(entry))
			}
			fmt.Fprintln(out, renderTable([]string{"Time", "Source", "Outcome", "File", "Result"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func historyRow(entry history.Entry) []string {
	result := entry.Error
	if entry.Outcome == "moved" {
		result = filepath.Join(entry.Category, entry.FinalName)
	}
	return []string{
		entry.RecordedAt.Local().Format(time.DateTime),
		entry.Source,
		entry.Outcome,
		filepath.Base(entry.Path),
		result,
	}
}
