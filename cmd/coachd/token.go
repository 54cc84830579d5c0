package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitstack/coach/internal/auth"
	"github.com/fitstack/coach/internal/config"
)

// buildTokenCmd issues a bearer token for a user, for local testing
// against an auth-enabled server.
func buildTokenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			service := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Expiry)
			token, err := service.Generate(args[0])
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "coach.yaml", "Path to configuration file")
	return cmd
}
