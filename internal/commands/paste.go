package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/strategy"
)

var errNoText = errors.New("no text to extract")

func newPasteCommand(a *app) *cobra.Command {
	var modeName, file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Extract from text pasted on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := model.ParseMode(modeName)
			if err != nil {
				return err
			}
			return runPaste(cmd, a, mode, file, asJSON)
		},
	}

	addModeFlags(cmd, &modeName)
	cmd.Flags().StringVar(&file, "file", "", "read text from a file instead of stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func runPaste(cmd *cobra.Command, a *app, mode model.Mode, file string, asJSON bool) error {
	var (
		text []byte
		err  error
	)
	if file != "" {
		text, err = os.ReadFile(file)
	} else {
		text, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading pasted text: %w", err)
	}
	if strings.TrimSpace(string(text)) == "" {
		return errNoText
	}

	chain, err := a.chain(cmd.Context())
	if err != nil {
		return err
	}

	out, err := chain.Run(cmd.Context(), strategy.Input{
		Data:   text,
		Format: ingest.FormatText,
		Mode:   mode,
		Pasted: true,
	})
	if err != nil {
		printPartial(cmd.ErrOrStderr(), out)
		return err
	}
	return printOutcome(cmd.OutOrStdout(), out, asJSON)
}
