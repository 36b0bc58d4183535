package handlers

import (
	"storefinder/internal/middleware"
	"storefinder/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ReviewHandler handles HTTP requests for reviews.
type ReviewHandler struct {
	service  *services.ReviewService
	validate *validator.Validate
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the review routes behind requireAuth.
func (h *ReviewHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	router.Post("/reviews/:storeId", requireAuth, h.HandleCreateReview)
}

// ReviewRequest represents the request body for a review.
type ReviewRequest struct {
	Rating int    `json:"rating" validate:"required,gte=1,lte=5"`
	Text   string `json:"text" validate:"required,max=2000"`
}

// HandleCreateReview records the caller's review of a store.
func (h *ReviewHandler) HandleCreateReview(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	review, err := h.service.Create(c.UserContext(), middleware.UserID(c), c.Params("storeId"), req.Rating, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}
