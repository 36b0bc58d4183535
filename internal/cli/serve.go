package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefinder/internal/app"
	"storefinder/internal/cache"
	"storefinder/internal/events"
	"storefinder/internal/repositories"
	"storefinder/internal/services"
	"storefinder/pkg/rabbitmq"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event consumer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "migrate the schema before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	db, err := repositories.Open(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if migrateOnStart {
		if err := repositories.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis and RabbitMQ are optional; the API runs without them.
	var c *cache.Cache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		} else {
			defer client.Close()
			c = cache.New(client, cfg.CacheTTL)
		}
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			defer mqClient.Close()
			publisher = mqClient
			if err := mqClient.Consume(events.NewRouter().Handle); err != nil {
				log.Error().Err(err).Msg("failed to start event consumer")
			}
		}
	}

	application := app.New(app.Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		Publisher: publisher,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.AppPort).Str("env", cfg.Env).Msg("starting server")
		errCh <- application.Listen(cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	if err := application.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}
