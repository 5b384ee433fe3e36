package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIngestFileCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest-file <path>",
		Short: "Parse a local text file of moderation log lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			rt, err := setup(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			summary, err := rt.pipeline.Ingest(cmd.Context(), string(data))
			if err != nil {
				return err
			}

			fmt.Printf("ingested %s (%d events inserted)\n", args[0], summary.Inserted())
			printSummary(summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse into an in-memory store; no database writes")
	return cmd
}
