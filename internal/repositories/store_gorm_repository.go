package repositories

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"storefinder/internal/geo"
	"storefinder/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const hasTagSQL = "EXISTS (SELECT 1 FROM store_tags WHERE store_tags.store_id = stores.id)"

const searchVectorSQL = "to_tsvector('english', name || ' ' || coalesce(description, ''))"

// GORMStoreRepository is a GORM implementation of StoreRepository.
type GORMStoreRepository struct {
	db *gorm.DB
}

// NewGORMStoreRepository creates a new instance of GORMStoreRepository.
func NewGORMStoreRepository(db *gorm.DB) *GORMStoreRepository {
	return &GORMStoreRepository{
		db: db,
	}
}

func withTags(db *gorm.DB) *gorm.DB {
	return db.Preload("TagRows", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Create inserts a store together with its tags. A taken slug surfaces as
// gorm.ErrDuplicatedKey.
func (r *GORMStoreRepository) Create(ctx context.Context, store *models.Store) error {
	if store.ID == "" {
		store.ID = uuid.New().String()
	}
	for i := range store.TagRows {
		store.TagRows[i].StoreID = store.ID
	}
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

// Update writes the store's fields and replaces its tags in one transaction.
func (r *GORMStoreRepository) Update(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(store).
			Select("name", "slug", "description", "lng", "lat", "address", "photo", "updated_at").
			Omit(clause.Associations).
			Updates(store)
		if res.Error != nil {
			return fmt.Errorf("failed to update store: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("store", store.ID)
		}

		if err := tx.Where("store_id = ?", store.ID).Delete(&models.StoreTag{}).Error; err != nil {
			return fmt.Errorf("failed to clear tags of store %s: %w", store.ID, err)
		}
		if len(store.TagRows) == 0 {
			return nil
		}
		for i := range store.TagRows {
			store.TagRows[i].StoreID = store.ID
		}
		if err := tx.Create(&store.TagRows).Error; err != nil {
			return fmt.Errorf("failed to save tags of store %s: %w", store.ID, err)
		}
		return nil
	})
}

// GetByID retrieves a single store by its ID.
func (r *GORMStoreRepository) GetByID(ctx context.Context, id string) (*models.Store, error) {
	var store models.Store
	if err := withTags(r.db.WithContext(ctx)).First(&store, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("store", id)
		}
		return nil, fmt.Errorf("failed to get store by ID %s: %w", id, err)
	}
	return &store, nil
}

// GetBySlug retrieves a store by slug. Reviews, newest first with their
// authors' names, are loaded only when includeReviews is set.
func (r *GORMStoreRepository) GetBySlug(ctx context.Context, slug string, includeReviews bool) (*models.Store, error) {
	q := withTags(r.db.WithContext(ctx))
	if includeReviews {
		q = q.Preload("Reviews", func(db *gorm.DB) *gorm.DB {
			return db.Order("created DESC, id ASC")
		}).Preload("Reviews.Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name")
		})
	}

	var store models.Store
	if err := q.First(&store, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("store", slug)
		}
		return nil, fmt.Errorf("failed to get store by slug %s: %w", slug, err)
	}
	return &store, nil
}

// List returns stores newest first.
func (r *GORMStoreRepository) List(ctx context.Context, offset, limit int) ([]models.Store, error) {
	var stores []models.Store
	err := withTags(r.db.WithContext(ctx)).
		Order("created DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

// Count returns the number of stores.
func (r *GORMStoreRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Store{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}
	return n, nil
}

// SlugsLike returns slugs equal to base or starting with "base-". The
// store with excludeID is left out so a rename does not collide with itself.
func (r *GORMStoreRepository) SlugsLike(ctx context.Context, base string, excludeID string) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&models.Store{}).
		Where("LOWER(slug) = ? OR LOWER(slug) LIKE ?", base, base+"-%")
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var slugs []string
	if err := q.Pluck("slug", &slugs).Error; err != nil {
		return nil, fmt.Errorf("failed to look up slugs like %s: %w", base, err)
	}
	return slugs, nil
}

// ListTags returns every distinct tag with the number of stores carrying it,
// most used first and ties by name.
func (r *GORMStoreRepository) ListTags(ctx context.Context) ([]models.TagCount, error) {
	tags := []models.TagCount{}
	err := r.db.WithContext(ctx).Model(&models.StoreTag{}).
		Select("name AS tag, COUNT(*) AS count").
		Group("name").
		Order("COUNT(*) DESC, name ASC").
		Scan(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tags: %w", err)
	}
	return tags, nil
}

// ListByTag returns the stores carrying tag, or every tagged store when
// tag is empty.
func (r *GORMStoreRepository) ListByTag(ctx context.Context, tag string) ([]models.Store, error) {
	q := withTags(r.db.WithContext(ctx)).Order("created DESC, id ASC")
	if tag == "" {
		q = q.Where(hasTagSQL)
	} else {
		q = q.Where("EXISTS (SELECT 1 FROM store_tags WHERE store_tags.store_id = stores.id AND store_tags.name = ?)", tag)
	}

	stores := []models.Store{}
	if err := q.Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to list stores by tag %q: %w", tag, err)
	}
	return stores, nil
}

// Search returns up to limit stores matching query by relevance. PostgreSQL
// uses the full-text index; other databases rank name matches above
// description matches.
func (r *GORMStoreRepository) Search(ctx context.Context, query string, limit int) ([]models.Store, error) {
	db := r.db.WithContext(ctx)
	var q *gorm.DB
	if isPostgres(db) {
		q = db.Where(searchVectorSQL+" @@ plainto_tsquery('english', ?)", query).
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:                "ts_rank(" + searchVectorSQL + ", plainto_tsquery('english', ?)) DESC, id ASC",
				Vars:               []interface{}{query},
				WithoutParentheses: true,
			}})
	} else {
		pattern := likePattern(query)
		q = db.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern).
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:                `CASE WHEN LOWER(name) LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, created DESC, id ASC`,
				Vars:               []interface{}{pattern},
				WithoutParentheses: true,
			}})
	}

	stores := []models.Store{}
	if err := withTags(q).Limit(limit).Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to search stores for %q: %w", query, err)
	}
	return stores, nil
}

func likePattern(query string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}

type nearbyRow struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Lng         float64
	Lat         float64
	Address     string
	Photo       string
}

// Near returns stores within maxDistance metres of center, closest first.
// The indexed bounding box narrows candidates before exact distances are
// computed.
func (r *GORMStoreRepository) Near(ctx context.Context, center geo.Point, maxDistance float64, limit int) ([]models.NearbyStore, error) {
	box := geo.BoundingBox(center, maxDistance)

	var rows []nearbyRow
	err := r.db.WithContext(ctx).Model(&models.Store{}).
		Select("id, slug, name, description, lng, lat, address, photo").
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("lng BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stores near %v: %w", center, err)
	}

	nearby := make([]models.NearbyStore, 0, len(rows))
	for _, row := range rows {
		d := geo.Distance(center, geo.Point{Lng: row.Lng, Lat: row.Lat})
		if d > maxDistance {
			continue
		}
		nearby = append(nearby, models.NearbyStore{
			ID:          row.ID,
			Slug:        row.Slug,
			Name:        row.Name,
			Description: row.Description,
			Location:    models.Location{Lng: row.Lng, Lat: row.Lat, Address: row.Address},
			Photo:       row.Photo,
			Distance:    d,
		})
	}
	slices.SortFunc(nearby, func(a, b models.NearbyStore) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

// ByIDs returns the stores with the given IDs ordered by name.
func (r *GORMStoreRepository) ByIDs(ctx context.Context, ids []string) ([]models.Store, error) {
	stores := []models.Store{}
	if len(ids) == 0 {
		return stores, nil
	}
	err := withTags(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("name ASC, id ASC").
		Find(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stores by IDs: %w", err)
	}
	return stores, nil
}
