// Package cli defines the storefinder command line.
package cli

import (
	"os"

	"storefinder/internal/config"
	"storefinder/pkg/logger"

	"github.com/spf13/cobra"
)

const serviceName = "storefinder"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Store directory API",
	Long: `storefinder serves a directory of stores with tags, reviews,
favourites and proximity search.

Available commands:
  serve      Run the HTTP API and event consumer
  migrate    Create or update the database schema
  seed       Fill the database with demo data`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Init(serviceName, cfg.Env, cfg.LogLevel)
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
