package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"modlog-archive/internal/config"
	"modlog-archive/internal/db"
)

func newInitSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create the archive tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			dbConn, err := db.New(cmd.Context(), cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer dbConn.Close()

			if err := dbConn.InitSchema(cmd.Context()); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}

			fmt.Println("schema ready")
			return nil
		},
	}
}
