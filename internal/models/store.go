package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PointType is the only geometry type a store location can have.
const PointType = "Point"

// Location is a store's position and street address. It is stored as plain
// columns and rendered as a GeoJSON-like point.
type Location struct {
	Lng     float64 `gorm:"column:lng;not null;index:idx_stores_location,priority:2"`
	Lat     float64 `gorm:"column:lat;not null;index:idx_stores_location,priority:1"`
	Address string  `gorm:"column:address;type:varchar(255);not null"`
}

type pointJSON struct {
	Type        string     `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string     `json:"address"`
}

// MarshalJSON renders coordinates in [lng, lat] order.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		Type:        PointType,
		Coordinates: []float64{l.Lng, l.Lat},
		Address:     l.Address,
	})
}

func (l *Location) UnmarshalJSON(data []byte) error {
	var p pointJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Type != "" && p.Type != PointType {
		return fmt.Errorf("unsupported location type %q", p.Type)
	}
	if len(p.Coordinates) != 2 {
		return fmt.Errorf("location needs [lng, lat] coordinates, got %d values", len(p.Coordinates))
	}
	l.Lng, l.Lat = p.Coordinates[0], p.Coordinates[1]
	l.Address = p.Address
	return nil
}

// Store is a listing owned by the user who created it.
type Store struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string     `json:"name" gorm:"type:varchar(255);not null"`
	Slug        string     `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex:idx_stores_slug"`
	Description string     `json:"description" gorm:"type:text"`
	Tags        []string   `json:"tags" gorm:"-"`
	TagRows     []StoreTag `json:"-" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	Location    Location   `json:"location" gorm:"embedded"`
	Photo       string     `json:"photo,omitempty" gorm:"type:varchar(255)"`
	AuthorID    string     `json:"author_id" gorm:"type:varchar(36);not null;index"`
	Author      *User      `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Reviews     []Review   `json:"reviews,omitempty" gorm:"foreignKey:StoreID"`
	Created     time.Time  `json:"created" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeSave trims the free-text fields before every insert or update.
func (s *Store) BeforeSave(tx *gorm.DB) error {
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	return nil
}

// AfterFind exposes preloaded tag rows as the ordered Tags slice.
func (s *Store) AfterFind(tx *gorm.DB) error {
	if s.TagRows == nil {
		return nil
	}
	s.Tags = make([]string, 0, len(s.TagRows))
	for _, row := range s.TagRows {
		s.Tags = append(s.Tags, row.Name)
	}
	return nil
}

// SetTags replaces the store's tags. Blank entries are dropped and repeated
// tags keep their first position.
func (s *Store) SetTags(tags []string) {
	seen := make(map[string]struct{}, len(tags))
	s.Tags = make([]string, 0, len(tags))
	s.TagRows = make([]StoreTag, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		s.TagRows = append(s.TagRows, StoreTag{StoreID: s.ID, Name: tag, Position: len(s.Tags)})
		s.Tags = append(s.Tags, tag)
	}
}

// StoreTag is one tag of one store.
type StoreTag struct {
	StoreID  string `gorm:"primaryKey;type:varchar(36)"`
	Name     string `gorm:"primaryKey;type:varchar(100);index:idx_store_tags_name"`
	Position int    `gorm:"not null"`
}

func (StoreTag) TableName() string {
	return "store_tags"
}

// TagCount is a distinct tag with the number of stores carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// TagPage is the result of browsing stores by tag.
type TagPage struct {
	Tag    string     `json:"tag"`
	Tags   []TagCount `json:"tags"`
	Stores []Store    `json:"stores"`
}

// StorePage is one page of the newest-first store listing.
type StorePage struct {
	Stores []Store `json:"stores"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
	Count  int64   `json:"count"`
}

// NearbyStore is the projection returned by proximity searches.
type NearbyStore struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Photo       string   `json:"photo,omitempty"`
	Distance    float64  `json:"distance"`
}

// RankedStore is a store with the aggregate of its reviews.
type RankedStore struct {
	Store
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int64   `json:"review_count"`
}
