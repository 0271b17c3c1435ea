package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/runlog"
)

func newLogCommand() *cobra.Command {
	var failedOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [directory]",
		Short: "Show recent batch runs from the run log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			entries, err := runlog.Read(root)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if failedOnly {
				entries = failedEntries(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(w, "No runs in %s\n", runlog.Path(root))
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			fmt.Fprintln(w, runTable(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show failed runs")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n of the latest runs (0 for all)")

	return cmd
}

func failedEntries(entries []runlog.Entry) []runlog.Entry {
	var out []runlog.Entry
	for _, e := range entries {
		if e.Failed() {
			out = append(out, e)
		}
	}
	return out
}

func runTable(entries []runlog.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Time", "Source", "Mode", "Strategy", "Rows", "Txns", "Status")

	for _, e := range entries {
		status := "ok"
		if e.Failed() {
			status = errorStyle.Render(e.Error)
		}
		t.Row(
			e.Timestamp.UTC().Format(time.DateTime),
			e.Source,
			e.Mode,
			e.Strategy,
			strconv.Itoa(e.RowCount),
			strconv.Itoa(e.Transactions),
			status,
		)
	}
	return t.String()
}
