package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modlog",
		Short: "Ingest pasted moderation logs into the archive",
		Long: `modlog parses Kick/Ban moderation log lines into structured,
deduplicated events with a stable player identity model.

Lines come from a local text file or from a Discord channel's message
history. Configuration is environment-driven (DB_DSN, REDIS_DSN,
DISCORD_TOKEN, ENABLE_FUZZY_USERNAME_MATCH, ...).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newIngestFileCmd())
	rootCmd.AddCommand(newFetchDiscordCmd())
	rootCmd.AddCommand(newInitSchemaCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
