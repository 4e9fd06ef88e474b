// Package commands defines all Cobra CLI commands for the admissions binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/audit"
	"github.com/iowathe3rd/admissions-agent/internal/config"
	"github.com/iowathe3rd/admissions-agent/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "admissions",
		Short: "AI assistant for the ALT University admissions office",
		Long: `Admissions is a retrieval-augmented assistant for the ALT University
admissions office. It answers applicant questions in Russian, grounded in
a curated knowledge base of admission documents.

Typical workflow:
  1. admissions ingest        index the knowledge base into Qdrant
  2. admissions ask "..."     answer a single question from the terminal
  3. admissions serve         run the HTTP API
  4. admissions bot           run the Telegram bot

Model and embedding providers are selected via MODEL_PROVIDER /
EMBEDDING_PROVIDER environment variables or a YAML config file
(~/.admissions/config.yaml). See 'admissions --help' for all commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.admissions/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewBotCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
