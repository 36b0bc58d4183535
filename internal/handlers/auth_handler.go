package handlers

import (
	"storefinder/internal/middleware"
	"storefinder/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and accounts.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    newValidator(),
	}
}

// RegisterRoutes registers the authentication and account routes.
// requireAuth guards the account routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/forgot", h.HandleForgot)
	authRoutes.Get("/reset/:token", h.HandleCheckReset)
	authRoutes.Post("/reset/:token", h.HandleReset)

	router.Get("/account", requireAuth, h.HandleGetAccount)
	router.Put("/account", requireAuth, h.HandleUpdateAccount)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// HandleRegister handles new user registration and logs the user in.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	user, token, err := h.authService.Register(c.UserContext(), services.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
		"token":   token,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	token, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// ForgotRequest represents the request body for a password reset.
type ForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgot starts a password reset.
func (h *AuthHandler) HandleForgot(c *fiber.Ctx) error {
	var req ForgotRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}
	if err := h.authService.Forgot(c.UserContext(), req.Email); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If that account exists you have been emailed a password reset link",
	})
}

// HandleCheckReset reports whether a reset token is usable.
func (h *AuthHandler) HandleCheckReset(c *fiber.Ctx) error {
	if _, err := h.authService.CheckResetToken(c.UserContext(), c.Params("token")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reset token is valid"})
}

// ResetRequest represents the request body for choosing a new password.
type ResetRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// HandleReset sets a new password and logs the user in.
func (h *AuthHandler) HandleReset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	token, err := h.authService.ResetPassword(c.UserContext(), c.Params("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Your password has been reset",
		"token":   token,
	})
}

// HandleGetAccount returns the authenticated user.
func (h *AuthHandler) HandleGetAccount(c *fiber.Ctx) error {
	user, err := h.authService.GetUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// AccountRequest represents the request body for updating an account.
type AccountRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// HandleUpdateAccount changes the authenticated user's name and email.
func (h *AuthHandler) HandleUpdateAccount(c *fiber.Ctx) error {
	var req AccountRequest
	if err := bind(c, h.validate, &req); err != nil {
		return fail(c, err)
	}

	user, err := h.authService.UpdateAccount(c.UserContext(), middleware.UserID(c), req.Name, req.Email)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}
