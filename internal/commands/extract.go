package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/strategy"
)

// addModeFlags registers the flags shared by every extracting command.
func addModeFlags(cmd *cobra.Command, mode *string) {
	cmd.Flags().StringVar(mode, "mode", string(model.Reconciliation), "extraction mode: reconciliation or general")
	cmd.Flags().String("model", "", "generative model used as fallback")
}

func newExtractCommand(a *app) *cobra.Command {
	var modeName, format string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract transactions or survey fields from a statement file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := model.ParseMode(modeName)
			if err != nil {
				return err
			}
			return runExtract(cmd, a, args[0], mode, format, asJSON)
		},
	}

	addModeFlags(cmd, &modeName)
	cmd.Flags().StringVar(&format, "format", "", "input format (default: from extension or content)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func runExtract(cmd *cobra.Command, a *app, path string, mode model.Mode, format string, asJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	format = strings.ToLower(format)
	if format == "" {
		format = ingest.Detect(path, data)
	}
	if !ingest.Known(format) {
		return fmt.Errorf("%w: %s", ingest.ErrUnknownFormat, format)
	}

	chain, err := a.chain(cmd.Context())
	if err != nil {
		return err
	}

	out, err := chain.Run(cmd.Context(), strategy.Input{
		Data:     data,
		Format:   format,
		Mode:     mode,
		Filename: filepath.Base(path),
	})
	if err != nil {
		printPartial(cmd.ErrOrStderr(), out)
		return err
	}
	return printOutcome(cmd.OutOrStdout(), out, asJSON)
}
