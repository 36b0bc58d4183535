package models

import "time"

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating of a store. Reviews are never edited.
type Review struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StoreID  string    `json:"store_id" gorm:"type:varchar(36);not null;index"`
	AuthorID string    `json:"author_id" gorm:"type:varchar(36);not null;index"`
	Author   *User     `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Rating   int       `json:"rating" gorm:"not null"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	Created  time.Time `json:"created" gorm:"autoCreateTime"`
}
