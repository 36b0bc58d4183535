package repositories

import (
	"context"

	"storefinder/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ToggleHeart(ctx context.Context, userID, storeID string) ([]string, error)
	Hearts(ctx context.Context, userID string) ([]string, error)
}
