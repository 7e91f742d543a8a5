package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type categoryRow struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
	Directory  string   `json:"directory"`
	Exists     bool     `json:"exists"`
}

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories and the extensions they claim",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			var rows []categoryRow
			for name := range reg.Categories() {
				dir := filepath.Join(cfg.Paths.WatchDir, name)
				info, statErr := os.Stat(dir)
				rows = append(rows, categoryRow{
					Name:       name,
					Extensions: reg.Extensions(name),
					Directory:  dir,
					Exists:     statErr == nil && info.IsDir(),
				})
			}
			if jsonOutput {
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{row.Name, strings.Join(row.Extensions, " "), yesNo(row.Exists)})
			}
			fmt.Fprintln(out, renderTable([]string{"Category", "Extensions", "Folder"}, table, nil))

			if shadowed := reg.Shadowed(); len(shadowed) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Extensions listed by more than one category (first listing wins):")
				for _, s := range shadowed {
					fmt.Fprintf(out, "  .%s -> %s (ignored in %s)\n", s.Extension, s.Owner, s.Shadowed)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
