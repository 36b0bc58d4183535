package repositories

import (
	"context"

	"storefinder/internal/models"
)

// ReviewRepository defines the interface for review data access.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	TopStores(ctx context.Context, limit int) ([]models.RankedStore, error)
}
