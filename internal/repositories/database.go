package repositories

import (
	"context"
	"fmt"

	"storefinder/internal/config"
	"storefinder/internal/models"
	"storefinder/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const searchIndexSQL = `CREATE INDEX IF NOT EXISTS idx_stores_search ON stores
USING GIN (to_tsvector('english', name || ' ' || coalesce(description, '')))`

// Open connects to the database named by the configuration.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.NewGorm(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// Migrate creates or updates the schema. On PostgreSQL it also builds the
// full-text index used by Search.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Store{},
		&models.StoreTag{},
		&models.Review{},
		&models.Heart{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if isPostgres(db) {
		if err := db.Exec(searchIndexSQL).Error; err != nil {
			return fmt.Errorf("failed to create search index: %w", err)
		}
	}
	return nil
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
