package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/runlog"
	"github.com/cleared-dev/recon/internal/strategy"
)

func newBatchCommand(a *app) *cobra.Command {
	var modeName string

	cmd := &cobra.Command{
		Use:   "batch [directory]",
		Short: "Extract every statement waiting in the inbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := model.ParseMode(modeName)
			if err != nil {
				return err
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runBatch(cmd, a, absRoot, mode)
		},
	}

	addModeFlags(cmd, &modeName)

	return cmd
}

func runBatch(cmd *cobra.Command, a *app, root string, mode model.Mode) error {
	w := cmd.OutOrStdout()
	inbox := a.cfg.Inbox.Dir
	if !filepath.IsAbs(inbox) {
		inbox = filepath.Join(root, inbox)
	}

	files, err := ingest.Scan(inbox)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No statements in %s\n", inbox)
		return nil
	}

	chain, err := a.chain(cmd.Context())
	if err != nil {
		return err
	}

	entries := make([]runlog.Entry, 0, len(files))
	failed := 0
	for _, f := range files {
		entry := a.processFile(cmd.Context(), chain, inbox, f, mode)
		entries = append(entries, entry)
		if entry.Failed() {
			failed++
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render("failed"), f.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", summaryStyle.Render("ok"), f.Name)
	}

	if err := runlog.Append(root, entries); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}

	fmt.Fprintf(w, "Processed %d of %d files\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed, see %s", failed, len(files), runlog.Path(root))
	}
	return nil
}

// processFile extracts one inbox file. On success the file moves to
// processed/ with its result beside it as <name>.json.
func (a *app) processFile(ctx context.Context, chain *strategy.Chain, inbox string, f ingest.FileInfo, mode model.Mode) runlog.Entry {
	entry := runlog.Entry{
		Timestamp: a.clock()(),
		Source:    f.Name,
		Mode:      string(mode),
	}
	fail := func(err error) runlog.Entry {
		a.logger.Error("batch file failed", "file", f.Name, "err", err)
		entry.Error = strings.ReplaceAll(err.Error(), "\n", "; ")
		return entry
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fail(fmt.Errorf("reading %s: %w", f.Name, err))
	}

	out, err := chain.Run(ctx, strategy.Input{
		Data:     data,
		Format:   f.Format,
		Mode:     mode,
		Filename: f.Name,
	})
	entry.RunID = out.RunID
	entry.Strategy = out.Strategy
	entry.RowCount = out.Result.RowCount
	entry.Transactions = len(out.Result.Transactions)
	if err != nil {
		return fail(err)
	}

	if err := ingest.MarkProcessed(inbox, f.Name); err != nil {
		return fail(err)
	}
	result, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("encoding result: %w", err))
	}
	if err := os.WriteFile(ingest.ProcessedPath(inbox, f.Name)+".json", result, 0o644); err != nil {
		return fail(fmt.Errorf("writing result: %w", err))
	}
	return entry
}
