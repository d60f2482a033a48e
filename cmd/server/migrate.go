package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := database.Migrate(cmd.Context(), app.db)
			if err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("Schema is up to date.")
				return nil
			}
			for _, v := range applied {
				app.logger.Info("migration applied", zap.String("version", v))
				fmt.Printf("- applied %s\n", v)
			}
			return nil
		},
	}
}
