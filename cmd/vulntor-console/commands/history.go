package commands

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulntor/console/cmd/vulntor-console/internal/format"
	"github.com/vulntor/console/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Inspect recorded scan executions",
		GroupID: "scan",
	}
	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scan history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "history list", err)
			}
			entries, err := app.Host.History().List(cmd.Context(), sessionID)
			if err != nil {
				return fail(cmd, "history list", err)
			}

			f := format.FromCommand(cmd)
			if len(entries) == 0 && !f.IsJSON() {
				return f.PrintSummary("No scan history recorded.")
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.ID,
					e.ScannerType,
					e.SessionID,
					string(e.Status),
					fmt.Sprint(e.Count(history.RecordData)),
					e.StartedAt.Local().Format(time.DateTime),
				})
			}
			return f.PrintTable([]string{"id", "scanner", "session", "status", "results", "started"}, rows)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Only list entries of this session id")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var exportFormat, exportFile string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one scan history entry",
		Example: `  vulntor-console history show 6f1c0c1e-4b7e-4d53-9a58-1d2b0f1f9c7e
  vulntor-console history show 6f1c0c1e-4b7e-4d53-9a58-1d2b0f1f9c7e --export jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "history show", err)
			}
			entry, err := app.Host.History().Get(cmd.Context(), args[0])
			if err != nil {
				return fail(cmd, "history show", err)
			}
			if exportFormat != "" {
				return exportEntry(cmd, entry, exportFormat, exportFile)
			}
			return printEntry(cmd, entry)
		},
	}

	cmd.Flags().StringVar(&exportFormat, "export", "", "Export the entry as json, jsonl or tsv")
	cmd.Flags().StringVar(&exportFile, "export-file", "", "Write the export to this file instead of stdout")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
