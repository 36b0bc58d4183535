package handlers

import (
	"storefinder/internal/geo"
	"storefinder/internal/middleware"
	"storefinder/internal/models"
	"storefinder/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// StoreHandler handles HTTP requests for stores, tags and hearts.
type StoreHandler struct {
	service  *services.StoreService
	validate *validator.Validate
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(service *services.StoreService) *StoreHandler {
	return &StoreHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the store routes. requireAuth guards writes and
// hearts.
func (h *StoreHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	storeRoutes := router.Group("/stores")
	storeRoutes.Get("/", h.HandleListStores)
	storeRoutes.Get("/page/:page", h.HandleListStores)
	storeRoutes.Get("/near", h.HandleNear)
	storeRoutes.Get("/top", h.HandleTopStores)
	storeRoutes.Post("/", requireAuth, h.HandleCreateStore)
	storeRoutes.Get("/:id/edit", requireAuth, h.HandleEditStore)
	storeRoutes.Put("/:id", requireAuth, h.HandleUpdateStore)
	storeRoutes.Post("/:id/heart", requireAuth, h.HandleToggleHeart)

	router.Get("/store/:slug", h.HandleGetStore)
	router.Get("/tags", h.HandleTags)
	router.Get("/tags/:tag", h.HandleTags)
	router.Get("/search", h.HandleSearch)
	router.Get("/hearts", requireAuth, h.HandleHearts)
}

// StoreRequest represents the request body for creating or editing a store.
type StoreRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Tags        []string        `json:"tags" validate:"max=20,dive,max=100"`
	Location    LocationRequest `json:"location"`
	Photo       string          `json:"photo" validate:"omitempty,max=255"`
}

// LocationRequest is the point a client sends for a store, coordinates in
// [lng, lat] order.
type LocationRequest struct {
	Type        string    `json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" validate:"required,len=2"`
	Address     string    `json:"address" validate:"required,max=255"`
}

func (r StoreRequest) input() services.StoreInput {
	return services.StoreInput{
		Name:        r.Name,
		Description: r.Description,
		Tags:        r.Tags,
		Location: models.Location{
			Lng:     r.Location.Coordinates[0],
			Lat:     r.Location.Coordinates[1],
			Address: r.Location.Address,
		},
		Photo: r.Photo,
	}
}

// HandleListStores returns one page of stores, newest first.
func (h *StoreHandler) HandleListStores(c *fiber.Ctx) error {
	page := 1
	if c.Params("page") != "" {
		p, err := c.ParamsInt("page")
		if err != nil {
			return fail(c, models.NewValidationError("Page must be a number"))
		}
		page = p
	}

	result, err := h.service.ListStores(c.UserContext(), page)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// HandleGetStore returns a store by slug. It lives under /store so that
// slugs never compete with the /stores listing routes. Reviews are included with
// ?include_reviews=true.
func (h *StoreHandler) HandleGetStore(c *fiber.Ctx) error {
	store, err := h.service.GetStoreBySlug(c.UserContext(), c.Params("slug"), c.QueryBool("include_reviews", false))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(store)
}

// HandleCreateStore creates a store owned by the caller.
func (h *StoreHandler) HandleCreateStore(c *fiber.Ctx) error {
	var req StoreRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	store, err := h.service.CreateStore(c.UserContext(), middleware.UserID(c), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(store)
}

// HandleEditStore returns a store for editing by its owner.
func (h *StoreHandler) HandleEditStore(c *fiber.Ctx) error {
	store, err := h.service.GetStoreForEdit(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(store)
}

// HandleUpdateStore applies an edit from the store's owner.
func (h *StoreHandler) HandleUpdateStore(c *fiber.Ctx) error {
	var req StoreRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	store, err := h.service.UpdateStore(c.UserContext(), c.Params("id"), middleware.UserID(c), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(store)
}

// HandleNear returns stores around ?lng=&lat=, optionally bounded by
// ?distance= metres and ?limit=.
func (h *StoreHandler) HandleNear(c *fiber.Ctx) error {
	point, err := geo.ParsePoint(c.Query("lng"), c.Query("lat"))
	if err != nil {
		return fail(c, err)
	}

	stores, err := h.service.Near(c.UserContext(), point.Lng, point.Lat, c.QueryFloat("distance", geo.DefaultMaxDistance), c.QueryInt("limit", geo.DefaultLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stores)
}

// HandleTopStores returns the best rated stores.
func (h *StoreHandler) HandleTopStores(c *fiber.Ctx) error {
	stores, err := h.service.TopStores(c.UserContext(), c.QueryInt("limit", services.DefaultTopLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stores)
}

// HandleTags returns the tag counts with the stores for the selected tag.
func (h *StoreHandler) HandleTags(c *fiber.Ctx) error {
	page, err := h.service.ListStoresByTag(c.UserContext(), c.Params("tag"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// HandleSearch returns the top matches for ?q=.
func (h *StoreHandler) HandleSearch(c *fiber.Ctx) error {
	stores, err := h.service.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stores)
}

// HandleToggleHeart toggles the store in the caller's hearts.
func (h *StoreHandler) HandleToggleHeart(c *fiber.Ctx) error {
	hearts, err := h.service.ToggleHeart(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"hearts": hearts})
}

// HandleHearts returns the caller's hearted stores.
func (h *StoreHandler) HandleHearts(c *fiber.Ctx) error {
	stores, err := h.service.HeartedStores(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stores)
}
