// Package commands defines all Cobra CLI commands for the desfrut binary.
package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/desfrut-go/internal/audit"
	"github.com/54b3r/desfrut-go/internal/config"
	"github.com/54b3r/desfrut-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// appConfig is the resolved configuration, set by the root pre-run.
var appConfig *config.Config

// appLog is the process logger, set by the root pre-run.
var appLog *slog.Logger

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "desfrut",
		Short: "Desfrut IA: shop assistant answering from the manual and product catalog",
		Long: `Desfrut IA answers customer questions using two knowledge sources: the
staff manual (PDF) and the product catalog (CSV).

Ingest both once, then serve the question page:

  desfrut ingest manual
  desfrut ingest products
  desfrut serve

Settings come from environment variables (a .env file in the working
directory is loaded first) and an optional YAML config file
(~/.desfrut/config.yaml or ./desfrut.yaml). Environment variables win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Existing environment variables are never overwritten by .env.
			dotenvErr := godotenv.Load()

			cfg, loadedPath, err := config.Load(configPath, slog.Default())
			if err != nil {
				return err
			}

			log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(log)
			if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
				log.Warn("failed to load .env", slog.Any("error", dotenvErr))
			}

			appConfig, appLog = cfg, log
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(log, cmd.Name(), loadedPath, cfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.desfrut/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
