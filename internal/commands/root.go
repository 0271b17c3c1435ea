package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	"github.com/cleared-dev/recon/internal/buildinfo"
	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/extract"
	"github.com/cleared-dev/recon/internal/logging"
	"github.com/cleared-dev/recon/internal/strategy"
)

// envFile holds secrets such as the Gemini API key.
const envFile = ".env"

// app carries state resolved once per invocation and shared by subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *log.Logger

	// generator replaces the Gemini client when set.
	generator strategy.ContentGenerator
	now       func() time.Time
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Extract transactions and survey fields from bank statements",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./recon.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newExtractCommand(a))
	rootCmd.AddCommand(newPasteCommand(a))
	rootCmd.AddCommand(newBatchCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newLogCommand())

	return rootCmd
}

// setup loads .env, layers the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Build(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) clock() func() time.Time {
	if a.now == nil {
		return time.Now
	}
	return a.now
}

// chain builds the strategy chain. The generative fallback is only added
// when an API key is available or a generator was injected.
func (a *app) chain(ctx context.Context) (*strategy.Chain, error) {
	engine := extract.NewEngine(a.cfg.ExtractConfig(a.clock()), nil, a.logger)

	gen := a.generator
	if gen == nil {
		if key := a.cfg.APIKey(); key != "" {
			client, err := strategy.NewGeminiClient(ctx, key)
			if err != nil {
				return nil, err
			}
			gen = client.Models
		} else {
			a.logger.Debug("no API key, generative fallback disabled", "env", a.cfg.Generative.APIKeyEnv)
		}
	}
	return strategy.NewDefaultChain(a.logger, engine, gen, a.cfg.Generative.Model), nil
}
