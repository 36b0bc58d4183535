package cli

import (
	"storefinder/internal/repositories"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repositories.Open(cfg)
		if err != nil {
			return err
		}
		if err := repositories.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("database migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
