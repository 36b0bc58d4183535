package cli

import (
	"time"

	"storefinder/internal/repositories"
	"storefinder/internal/seed"
	"storefinder/internal/services"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seedOpts seed.Options

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := repositories.Open(cfg)
		if err != nil {
			return err
		}
		if err := repositories.Migrate(ctx, db); err != nil {
			return err
		}

		storeRepo := repositories.NewGORMStoreRepository(db)
		reviewRepo := repositories.NewGORMReviewRepository(db)
		userRepo := repositories.NewGORMUserRepository(db)
		seeder := seed.New(
			services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, cfg.PublicURL, nil),
			services.NewStoreService(storeRepo, reviewRepo, userRepo, nil, nil),
			services.NewReviewService(reviewRepo, storeRepo, nil, nil),
		)

		if seedOpts.Seed == 0 {
			seedOpts.Seed = time.Now().UnixNano()
		}
		res, err := seeder.Run(log.Logger.WithContext(ctx), seedOpts)
		if err != nil {
			return err
		}
		log.Info().Int("users", res.Users).Str("password", seed.DemoPassword).Msg("demo users can log in with the shared password")
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Users, "users", 5, "number of users to create")
	seedCmd.Flags().IntVar(&seedOpts.Stores, "stores", 20, "number of stores to create")
	seedCmd.Flags().IntVar(&seedOpts.Reviews, "reviews", 60, "number of reviews to create")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 0, "random seed, 0 picks one")
	rootCmd.AddCommand(seedCmd)
}
