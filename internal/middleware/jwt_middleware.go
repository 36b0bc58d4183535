package middleware

import (
	"strings"

	"storefinder/internal/models"
	"storefinder/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// UserIDKey is the c.Locals key holding the authenticated user's ID.
const UserIDKey = "user_id"

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Authorization header is required"))
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return models.RespondWithError(c, models.NewUnauthorizedError("Authorization header format must be 'Bearer <token>'"))
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Ctx(c.UserContext()).Debug().Err(err).Msg("JWT validation failed")
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Token carries no user"))
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user's ID set by AuthRequired.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
