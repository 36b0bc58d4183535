// Package app assembles the HTTP application from its dependencies.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefinder/internal/cache"
	"storefinder/internal/config"
	"storefinder/internal/handlers"
	"storefinder/internal/middleware"
	"storefinder/internal/models"
	"storefinder/internal/repositories"
	"storefinder/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const serviceName = "storefinder"

// The collectors behind fiberprometheus register globally, so every app in
// the process shares one instance.
var httpMetrics = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
})

// Deps are the resources the application runs on. Cache and Publisher may
// be nil.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Cache     *cache.Cache
	Publisher services.EventPublisher
}

// New builds the fiber app with every route registered.
func New(deps Deps) *fiber.App {
	storeRepo := repositories.NewGORMStoreRepository(deps.DB)
	reviewRepo := repositories.NewGORMReviewRepository(deps.DB)
	userRepo := repositories.NewGORMUserRepository(deps.DB)

	authService := services.NewAuthService(userRepo, deps.Config.JWTSecret, deps.Config.JWTTTL, deps.Config.PublicURL, deps.Publisher)
	storeService := services.NewStoreService(storeRepo, reviewRepo, userRepo, deps.Cache, deps.Publisher)
	reviewService := services.NewReviewService(reviewRepo, storeRepo, deps.Cache, deps.Publisher)

	authHandler := handlers.NewAuthHandler(authService)
	storeHandler := handlers.NewStoreHandler(storeService)
	reviewHandler := handlers.NewReviewHandler(reviewService)

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: errorHandler,
	})

	prometheus := httpMetrics()
	prometheus.RegisterAt(app, "/metrics")

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger)
	if !deps.Config.IsProduction() {
		app.Use(logger.New())
	}
	app.Use(prometheus.Middleware)

	app.Get("/health", healthHandler(deps))

	apiV1 := app.Group("/api/v1")
	requireAuth := middleware.AuthRequired(authService)
	authHandler.RegisterRoutes(apiV1, requireAuth)
	storeHandler.RegisterRoutes(apiV1, requireAuth)
	reviewHandler.RegisterRoutes(apiV1, requireAuth)

	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, models.NewNotFoundError("route", c.Path()))
	})
	return app
}

// requestLogger puts a logger tagged with the request ID on the request's
// context.
func requestLogger(c *fiber.Ctx) error {
	l := log.With().Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).Logger()
	c.SetUserContext(l.WithContext(c.UserContext()))
	return c.Next()
}

// errorHandler renders errors that escape handlers, such as fiber's own
// routing and body-limit errors.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
			Error: fiberErr.Message,
			Code:  codeForStatus(fiberErr.Code),
		})
	}
	log.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return models.RespondWithError(c, err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodePermissionDenied
	default:
		return models.CodeInternal
	}
}

func healthHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		checks := fiber.Map{}

		checks["database"] = "up"
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			status = fiber.StatusServiceUnavailable
		}

		switch {
		case !deps.Cache.Enabled():
			checks["redis"] = "disabled"
		case deps.Cache.Ping(ctx) != nil:
			checks["redis"] = "down"
		default:
			checks["redis"] = "up"
		}

		checks["rabbitmq"] = "disabled"
		if deps.Publisher != nil {
			checks["rabbitmq"] = "connected"
		}

		state := "healthy"
		if status != fiber.StatusOK {
			state = "unhealthy"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": state,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	}
}
