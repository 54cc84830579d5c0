// Package main is the CLI entry point for coachd, the fitness-coaching
// agent routing service.
//
// Start the server:
//
//	coachd serve --config coach.yaml
//
// Configuration can also be provided via environment variables expanded
// inside the YAML file. A .env file in the working directory is loaded
// before anything else.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coachd",
		Short:         "Agent routing service for the fitness coaching assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildTokenCmd(),
	)
	return rootCmd
}
