package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefinder/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database. A taken email surfaces as
// gorm.ErrDuplicatedKey.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID together with their hearts.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.first(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if user.Hearts, err = r.Hearts(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by their normalized email.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByResetToken retrieves the user holding a password reset token,
// whether or not it has expired.
func (r *GORMUserRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.first(ctx, "reset_password_token = ?", token)
}

func (r *GORMUserRepository) first(ctx context.Context, cond string, value string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, cond, value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("user", value)
		}
		return nil, fmt.Errorf("failed to get user where %s: %w", cond, err)
	}
	return &user, nil
}

// Update writes the user's profile, password and reset token fields.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(user).
		Select("name", "email", "password", "reset_password_token", "reset_password_expires", "updated_at").
		Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("user", user.ID)
	}
	return nil
}

// ToggleHeart removes storeID from the user's hearts when present and adds
// it otherwise. It returns the resulting set sorted by store ID.
func (r *GORMUserRepository) ToggleHeart(ctx context.Context, userID, storeID string) ([]string, error) {
	var hearts []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND store_id = ?", userID, storeID).Delete(&models.Heart{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove heart: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			heart := models.Heart{UserID: userID, StoreID: storeID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&heart).Error; err != nil {
				return fmt.Errorf("failed to add heart: %w", err)
			}
		}

		var err error
		hearts, err = heartsOf(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hearts, nil
}

// Hearts returns the IDs of the stores the user has hearted.
func (r *GORMUserRepository) Hearts(ctx context.Context, userID string) ([]string, error) {
	return heartsOf(r.db.WithContext(ctx), userID)
}

func heartsOf(db *gorm.DB, userID string) ([]string, error) {
	hearts := []string{}
	err := db.Model(&models.Heart{}).
		Where("user_id = ?", userID).
		Order("store_id ASC").
		Pluck("store_id", &hearts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get hearts of user %s: %w", userID, err)
	}
	return hearts, nil
}
