package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"storefinder/internal/cache"
	"storefinder/internal/events"
	"storefinder/internal/geo"
	"storefinder/internal/metrics"
	"storefinder/internal/models"
	"storefinder/internal/repositories"
	"storefinder/internal/slug"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Listing limits.
const (
	StoresPerPage   = 4
	SearchLimit     = 5
	DefaultTopLimit = 10
	MaxTopLimit     = 100
	MaxNearLimit    = 100
)

const maxSlugAttempts = 5

var photoName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// EventPublisher sends domain events. A nil publisher disables events.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// StoreInput holds the fields a user can set on a store.
type StoreInput struct {
	Name        string
	Description string
	Tags        []string
	Location    models.Location
	Photo       string
}

func (in StoreInput) validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "You must supply a store name"
	}
	if strings.TrimSpace(in.Location.Address) == "" {
		fields["address"] = "You must supply an address"
	}
	if _, err := geo.NewPoint(in.Location.Lng, in.Location.Lat); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			fields["coordinates"] = appErr.Message
		}
	}
	if in.Photo != "" && (!photoName.MatchString(in.Photo) || strings.Trim(in.Photo, ".") == "") {
		fields["photo"] = "Photo must be a plain file name"
	}
	if len(fields) > 0 {
		return models.NewFieldValidationError(fields)
	}
	return nil
}

// ConfirmOwner fails with PERMISSION_DENIED unless userID authored store.
func ConfirmOwner(store *models.Store, userID string) error {
	if store.AuthorID != userID {
		return models.NewPermissionDeniedError("You must own a store in order to edit it")
	}
	return nil
}

// StoreService handles business logic related to stores.
type StoreService struct {
	stores  repositories.StoreRepository
	reviews repositories.ReviewRepository
	users   repositories.UserRepository
	cache   *cache.Cache
	events  EventPublisher
}

// NewStoreService creates a new StoreService. cache and publisher may be nil.
func NewStoreService(
	stores repositories.StoreRepository,
	reviews repositories.ReviewRepository,
	users repositories.UserRepository,
	c *cache.Cache,
	publisher EventPublisher,
) *StoreService {
	return &StoreService{
		stores:  stores,
		reviews: reviews,
		users:   users,
		cache:   c,
		events:  publisher,
	}
}

// CreateStore creates a store authored by authorID with a fresh slug.
func (s *StoreService) CreateStore(ctx context.Context, authorID string, in StoreInput) (*models.Store, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	store := &models.Store{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Location:    in.Location,
		Photo:       in.Photo,
		AuthorID:    authorID,
	}
	store.SetTags(in.Tags)

	if err := s.saveWithSlug(ctx, store, "", "", func() error {
		return s.stores.Create(ctx, store)
	}); err != nil {
		return nil, err
	}

	s.cache.InvalidateStores(ctx)
	events.Emit(ctx, s.events, events.StoreCreated, storeEvent(store))
	log.Ctx(ctx).Info().Str("store_id", store.ID).Str("slug", store.Slug).Msg("store created")
	return store, nil
}

// GetStoreForEdit returns the store when userID owns it.
func (s *StoreService) GetStoreForEdit(ctx context.Context, id, userID string) (*models.Store, error) {
	store, err := s.stores.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ConfirmOwner(store, userID); err != nil {
		return nil, err
	}
	return store, nil
}

// UpdateStore applies in to the store owned by userID. The slug is
// regenerated only when the name changes.
func (s *StoreService) UpdateStore(ctx context.Context, id, userID string, in StoreInput) (*models.Store, error) {
	store, err := s.GetStoreForEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	previousName, currentSlug := store.Name, store.Slug
	store.Name = strings.TrimSpace(in.Name)
	store.Description = strings.TrimSpace(in.Description)
	store.Location = in.Location
	store.Photo = in.Photo
	store.SetTags(in.Tags)

	if err := s.saveWithSlug(ctx, store, previousName, currentSlug, func() error {
		return s.stores.Update(ctx, store)
	}); err != nil {
		return nil, err
	}

	s.cache.InvalidateStores(ctx)
	events.Emit(ctx, s.events, events.StoreUpdated, storeEvent(store))
	return store, nil
}

// saveWithSlug resolves store.Slug and calls save, moving to the next
// suffix whenever another writer took the slug first.
func (s *StoreService) saveWithSlug(ctx context.Context, store *models.Store, previousName, currentSlug string, save func() error) error {
	resolved, err := slug.Resolve(ctx, s.stores, store.Name, previousName, currentSlug, store.ID)
	if err != nil {
		return models.NewInternalError(err)
	}
	store.Slug = resolved
	base := slug.Base(store.Name)

	for attempt := 1; ; attempt++ {
		err := save()
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return err
			}
			return models.NewInternalError(err)
		}
		if attempt == maxSlugAttempts {
			return models.NewConflictError(fmt.Sprintf("Could not assign a unique slug for %q", store.Name))
		}
		metrics.SlugConflicts.Inc()
		log.Ctx(ctx).Warn().Str("slug", store.Slug).Int("attempt", attempt).Msg("slug taken, retrying")
		store.Slug = slug.Next(base, store.Slug)
	}
}

// GetStoreBySlug returns the store with slug, with its reviews when
// includeReviews is set.
func (s *StoreService) GetStoreBySlug(ctx context.Context, slugValue string, includeReviews bool) (*models.Store, error) {
	return s.stores.GetBySlug(ctx, slugValue, includeReviews)
}

// ListStores returns one page of stores, newest first. Page numbers start
// at 1; a page past the end is NOT_FOUND.
func (s *StoreService) ListStores(ctx context.Context, page int) (*models.StorePage, error) {
	if page < 1 {
		return nil, models.NewValidationError("Page must be a positive number")
	}

	count, err := s.stores.Count(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	pages := int((count + StoresPerPage - 1) / StoresPerPage)
	if page > 1 && page > pages {
		return nil, &models.AppError{
			Code:    models.CodeNotFound,
			Message: fmt.Sprintf("Page %d does not exist, the last page is %d", page, pages),
		}
	}

	stores, err := s.stores.List(ctx, (page-1)*StoresPerPage, StoresPerPage)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.StorePage{Stores: stores, Page: page, Pages: pages, Count: count}, nil
}

// ListTags returns every tag with its store count, most used first.
func (s *StoreService) ListTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	err := s.cache.Aside(ctx, cache.TagsKey, &tags, func() error {
		var err error
		tags, err = s.stores.ListTags(ctx)
		return err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// ListStoresByTag returns the tag list together with the stores carrying
// tag, or every tagged store when tag is empty.
func (s *StoreService) ListStoresByTag(ctx context.Context, tag string) (*models.TagPage, error) {
	tag = strings.TrimSpace(tag)
	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	stores, err := s.stores.ListByTag(ctx, tag)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.TagPage{Tag: tag, Tags: tags, Stores: stores}, nil
}

// Search returns the best matches for query.
func (s *StoreService) Search(ctx context.Context, query string) ([]models.Store, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	stores, err := s.stores.Search(ctx, query, SearchLimit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stores, nil
}

// Near returns up to limit stores within maxDistance metres of (lng, lat),
// closest first. Non-positive arguments take the defaults.
func (s *StoreService) Near(ctx context.Context, lng, lat, maxDistance float64, limit int) ([]models.NearbyStore, error) {
	center, err := geo.NewPoint(lng, lat)
	if err != nil {
		return nil, err
	}
	if maxDistance <= 0 {
		maxDistance = geo.DefaultMaxDistance
	}
	if limit <= 0 {
		limit = geo.DefaultLimit
	}
	limit = min(limit, MaxNearLimit)

	stores, err := s.stores.Near(ctx, center, maxDistance, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stores, nil
}

// TopStores returns stores with more than one review ranked by average
// rating.
func (s *StoreService) TopStores(ctx context.Context, limit int) ([]models.RankedStore, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	limit = min(limit, MaxTopLimit)

	var ranked []models.RankedStore
	err := s.cache.Aside(ctx, cache.TopStoresKey(limit), &ranked, func() error {
		var err error
		ranked, err = s.reviews.TopStores(ctx, limit)
		return err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ranked, nil
}

// ToggleHeart adds storeID to the user's hearts or removes it when already
// present, returning the updated set.
func (s *StoreService) ToggleHeart(ctx context.Context, userID, storeID string) ([]string, error) {
	if _, err := s.stores.GetByID(ctx, storeID); err != nil {
		return nil, err
	}
	hearts, err := s.users.ToggleHeart(ctx, userID, storeID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	action := "removed"
	if slices.Contains(hearts, storeID) {
		action = "added"
	}
	metrics.HeartsToggled.WithLabelValues(action).Inc()
	return hearts, nil
}

// HeartedStores returns the stores in the user's hearts.
func (s *StoreService) HeartedStores(ctx context.Context, userID string) ([]models.Store, error) {
	ids, err := s.users.Hearts(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	stores, err := s.stores.ByIDs(ctx, ids)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stores, nil
}

func storeEvent(store *models.Store) events.StoreEvent {
	return events.StoreEvent{
		StoreID:  store.ID,
		Slug:     store.Slug,
		Name:     store.Name,
		AuthorID: store.AuthorID,
	}
}
