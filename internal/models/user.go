package models

import "time"

// User represents a registered account.
type User struct {
	ID                   string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name                 string     `json:"name" gorm:"type:varchar(100);not null"`
	Email                string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password             string     `json:"-" gorm:"type:varchar(255);not null"`
	ResetPasswordToken   *string    `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	ResetPasswordExpires *time.Time `json:"-"`
	Hearts               []string   `json:"hearts" gorm:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Heart marks a store as a favourite of a user.
type Heart struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	StoreID   string    `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
