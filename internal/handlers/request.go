package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefinder/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, v *validator.Validate, req any) error {
	if err := c.BodyParser(req); err != nil {
		return &models.AppError{Code: models.CodeValidation, Message: "Invalid request body", Err: err}
	}
	if err := v.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return models.NewInternalError(err)
		}
		fields := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return models.NewFieldValidationError(fields)
	}
	return nil
}

// fail logs unexpected errors and writes the error response.
func fail(c *fiber.Ctx, err error) error {
	if models.CodeOf(err) == models.CodeInternal {
		log.Ctx(c.UserContext()).Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return models.RespondWithError(c, err)
}
