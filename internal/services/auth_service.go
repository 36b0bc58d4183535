package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefinder/internal/events"
	"storefinder/internal/models"
	"storefinder/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

const resetTokenBytes = 20

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration
	publicURL  string
	events     EventPublisher
	now        func() time.Time
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, publicURL string, publisher EventPublisher) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: tokenTTL,
		publicURL:  strings.TrimRight(publicURL, "/"),
		events:     publisher,
		now:        time.Now,
	}
}

// NormalizeEmail trims and lowercases email and folds googlemail.com into
// gmail.com.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if local, ok := strings.CutSuffix(email, "@googlemail.com"); ok {
		return local + "@gmail.com"
	}
	return email
}

// RegisterInput is a new account.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates an account and returns it with a login token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if in.Password != in.ConfirmPassword {
		return nil, "", models.NewFieldValidationError(map[string]string{
			"confirm_password": "Oops! Your passwords do not match",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", models.NewInternalError(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    NormalizeEmail(in.Email),
		Password: string(hashedPassword),
		Hearts:   []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", models.NewConflictError(fmt.Sprintf("Email '%s' already registered", user.Email))
		}
		return nil, "", models.NewInternalError(err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates a user by email and returns a JWT token if successful.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !models.IsCode(err, models.CodeNotFound) {
			return "", models.NewInternalError(err)
		}
		return "", models.NewUnauthorizedError("Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", models.NewUnauthorizedError("Invalid credentials")
	}
	return s.GenerateToken(user)
}

// GenerateToken issues a signed JWT for user.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     now.Add(s.tokenDurat).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("failed to generate token: %w", err))
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// Forgot starts a password reset for email. Unknown addresses are accepted
// silently so the endpoint does not reveal which accounts exist.
func (s *AuthService) Forgot(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			log.Ctx(ctx).Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return models.NewInternalError(err)
	}

	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return models.NewInternalError(fmt.Errorf("failed to generate reset token: %w", err))
	}
	token := hex.EncodeToString(buf)
	expires := s.now().Add(ResetTokenTTL)
	user.ResetPasswordToken = &token
	user.ResetPasswordExpires = &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return models.NewInternalError(err)
	}

	events.Emit(ctx, s.events, events.PasswordReset, events.PasswordResetEvent{
		UserID:    user.ID,
		Email:     user.Email,
		ResetURL:  fmt.Sprintf("%s/api/v1/auth/reset/%s", s.publicURL, token),
		ExpiresAt: expires,
	})
	return nil
}

// CheckResetToken returns the user holding token. An unknown token is
// NOT_FOUND and a lapsed one EXPIRED_TOKEN.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) (*models.User, error) {
	user, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, &models.AppError{Code: models.CodeNotFound, Message: "Password reset token is invalid"}
		}
		return nil, models.NewInternalError(err)
	}
	if user.ResetPasswordExpires == nil || !s.now().Before(*user.ResetPasswordExpires) {
		return nil, models.NewExpiredTokenError("Password reset token has expired")
	}
	return user, nil
}

// ResetPassword sets a new password for the holder of token, clears the
// token and returns a fresh login token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	if password != confirm {
		return "", models.NewFieldValidationError(map[string]string{
			"confirm_password": "Passwords do not match",
		})
	}
	user, err := s.CheckResetToken(ctx, token)
	if err != nil {
		return "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("failed to hash password: %w", err))
	}
	user.Password = string(hashedPassword)
	user.ResetPasswordToken = nil
	user.ResetPasswordExpires = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", models.NewInternalError(err)
	}
	return s.GenerateToken(user)
}

// GetUser returns the account with its hearts.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// UpdateAccount changes the user's name and email.
func (s *AuthService) UpdateAccount(ctx context.Context, userID, name, email string) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(name)
	user.Email = NormalizeEmail(email)
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError(fmt.Sprintf("Email '%s' already registered", user.Email))
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}
