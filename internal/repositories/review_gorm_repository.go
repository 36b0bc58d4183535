package repositories

import (
	"context"
	"fmt"

	"storefinder/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMReviewRepository is a GORM implementation of ReviewRepository.
type GORMReviewRepository struct {
	db *gorm.DB
}

// NewGORMReviewRepository creates a new instance of GORMReviewRepository.
func NewGORMReviewRepository(db *gorm.DB) *GORMReviewRepository {
	return &GORMReviewRepository{
		db: db,
	}
}

// Create inserts a review.
func (r *GORMReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

type ratingAggregate struct {
	StoreID       string
	AverageRating float64
	ReviewCount   int64
}

// TopStores ranks stores with more than one review by average rating,
// highest first. Ties are broken by store ID.
func (r *GORMReviewRepository) TopStores(ctx context.Context, limit int) ([]models.RankedStore, error) {
	db := r.db.WithContext(ctx)

	var aggs []ratingAggregate
	err := db.Model(&models.Review{}).
		Select("store_id, CAST(AVG(rating) AS DOUBLE PRECISION) AS average_rating, COUNT(*) AS review_count").
		Group("store_id").
		Having("COUNT(*) > ?", 1).
		Order("average_rating DESC, store_id ASC").
		Limit(limit).
		Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank stores: %w", err)
	}

	ranked := []models.RankedStore{}
	if len(aggs) == 0 {
		return ranked, nil
	}

	ids := make([]string, len(aggs))
	for i, a := range aggs {
		ids[i] = a.StoreID
	}
	var stores []models.Store
	if err := withTags(db).Where("id IN ?", ids).Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to load ranked stores: %w", err)
	}
	byID := make(map[string]models.Store, len(stores))
	for _, s := range stores {
		byID[s.ID] = s
	}

	for _, a := range aggs {
		store, ok := byID[a.StoreID]
		if !ok {
			continue
		}
		ranked = append(ranked, models.RankedStore{
			Store:         store,
			AverageRating: a.AverageRating,
			ReviewCount:   a.ReviewCount,
		})
	}
	return ranked, nil
}
