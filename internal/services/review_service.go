package services

import (
	"context"
	"strings"

	"storefinder/internal/cache"
	"storefinder/internal/events"
	"storefinder/internal/models"
	"storefinder/internal/repositories"
)

// ReviewService handles business logic related to reviews.
type ReviewService struct {
	reviews repositories.ReviewRepository
	stores  repositories.StoreRepository
	cache   *cache.Cache
	events  EventPublisher
}

// NewReviewService creates a new ReviewService. cache and publisher may be nil.
func NewReviewService(reviews repositories.ReviewRepository, stores repositories.StoreRepository, c *cache.Cache, publisher EventPublisher) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		stores:  stores,
		cache:   c,
		events:  publisher,
	}
}

// Create records authorID's review of storeID.
func (s *ReviewService) Create(ctx context.Context, authorID, storeID string, rating int, text string) (*models.Review, error) {
	text = strings.TrimSpace(text)
	fields := make(map[string]string)
	if rating < models.MinRating || rating > models.MaxRating {
		fields["rating"] = "Rating must be between 1 and 5"
	}
	if text == "" {
		fields["text"] = "Your review must have text"
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	if _, err := s.stores.GetByID(ctx, storeID); err != nil {
		return nil, err
	}

	review := &models.Review{
		StoreID:  storeID,
		AuthorID: authorID,
		Rating:   rating,
		Text:     text,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, models.NewInternalError(err)
	}

	s.cache.InvalidatePrefix(ctx, cache.TopStoresPrefix)
	events.Emit(ctx, s.events, events.ReviewCreated, events.ReviewEvent{
		ReviewID: review.ID,
		StoreID:  review.StoreID,
		AuthorID: review.AuthorID,
		Rating:   review.Rating,
	})
	return review, nil
}
