package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/strategy"
)

var (
	summaryStyle  = lipgloss.NewStyle().Bold(true)
	strategyStyle = lipgloss.NewStyle().Faint(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printOutcome writes out as indented JSON or as a table with a summary line.
func printOutcome(w io.Writer, out strategy.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, resultTable(out.Result))
	fmt.Fprintln(w, summaryLine(out))
	return nil
}

// printPartial reports what a failed run still read, if anything.
func printPartial(w io.Writer, out strategy.Outcome) {
	if out.Strategy == "" {
		return
	}
	fmt.Fprintln(w, summaryLine(out))
}

func resultTable(res model.Result) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	if res.Mode == model.General {
		t.Headers("Label", "Type", "Options")
		for _, f := range res.Fields {
			t.Row(f.Label, string(f.Type), strings.Join(f.Options, ", "))
		}
		return t.String()
	}

	t.Headers("Date", "Description", "Amount", "Type")
	for _, txn := range res.Transactions {
		t.Row(txn.Date, txn.Description, txn.Amount.StringFixed(2), string(txn.Type))
	}
	return t.String()
}

// summaryLine reports how much of the input was mapped and by which strategy.
func summaryLine(out strategy.Outcome) string {
	res := out.Result
	var s string
	if res.Mode == model.General {
		s = fmt.Sprintf("found %d fields", len(res.Fields))
	} else {
		s = fmt.Sprintf("mapped %d of %d rows", len(res.Transactions), res.RowCount)
	}
	return summaryStyle.Render(s) + " " + strategyStyle.Render("via "+out.Strategy)
}
