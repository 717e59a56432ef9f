package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/disaster-ready/internal/service"
	"github.com/sakif/disaster-ready/internal/storage"
)

// NewAdminCmd groups the role management subcommands. Granting from the
// command line is how the first administrator is created.
func NewAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke the admin role",
	}
	cmd.AddCommand(newSetAdminCmd(configPath, "grant", true))
	cmd.AddCommand(newSetAdminCmd(configPath, "revoke", false))
	return cmd
}

func newSetAdminCmd(configPath *string, use string, isAdmin bool) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   use,
		Short: use + " the admin role for the user with --email",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			stores, err := storage.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer stores.Close()

			user, err := service.NewUserService(stores.Users, logger).SetAdminByEmail(cmd.Context(), email, isAdmin)
			if err != nil {
				if service.IsNotFound(err) {
					return fmt.Errorf("no user with email %q", email)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: isAdmin=%t (existing tokens keep their role until they expire)\n", user.Email, user.IsAdmin)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email of the user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
