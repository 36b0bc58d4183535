package repositories

import (
	"context"

	"storefinder/internal/geo"
	"storefinder/internal/models"
)

// StoreRepository defines the interface for store data access.
type StoreRepository interface {
	Create(ctx context.Context, store *models.Store) error
	Update(ctx context.Context, store *models.Store) error
	GetByID(ctx context.Context, id string) (*models.Store, error)
	GetBySlug(ctx context.Context, slug string, includeReviews bool) (*models.Store, error)
	List(ctx context.Context, offset, limit int) ([]models.Store, error)
	Count(ctx context.Context) (int64, error)
	SlugsLike(ctx context.Context, base string, excludeID string) ([]string, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
	ListByTag(ctx context.Context, tag string) ([]models.Store, error)
	Search(ctx context.Context, query string, limit int) ([]models.Store, error)
	Near(ctx context.Context, center geo.Point, maxDistance float64, limit int) ([]models.NearbyStore, error)
	ByIDs(ctx context.Context, ids []string) ([]models.Store, error)
}
