package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/repository"
)

func createUserCmd() *cobra.Command {
	var (
		username    string
		password    string
		role        string
		personnelID uint64
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if len(password) < 8 {
				return errors.New("password must have at least 8 characters")
			}
			var pid *uint64
			if personnelID > 0 {
				if _, err := repository.NewPersonnelRepo(app.db).GetByID(cmd.Context(), personnelID); err != nil {
					return fmt.Errorf("personnel %d: %w", personnelID, err)
				}
				pid = &personnelID
			}

			id, err := repository.NewUserRepo(app.db).Create(cmd.Context(), username, password, role, pid, app.cfg.BcryptCost)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			app.logger.Info("user created", zap.Uint64("user_id", id), zap.String("role", role))
			fmt.Printf("Created user %s (id %d, role %s)\n", username, id, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", auth.RoleMitglied, "admin, wehrfuehrer, gruppenfuehrer or mitglied")
	cmd.Flags().Uint64Var(&personnelID, "personnel-id", 0, "Link the account to a personnel record")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
