package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/disaster-ready/internal/server"
)

// NewServeCmd builds the subcommand that runs the HTTP API.
func NewServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
}
