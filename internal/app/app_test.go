package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefinder/internal/app"
	"storefinder/internal/cache"
	"storefinder/internal/config"
	"storefinder/internal/models"
	"storefinder/internal/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T) app.Deps {
	t.Helper()
	cfg := &config.Config{
		Env:         "test",
		DBDriver:    "sqlite",
		DatabaseDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		JWTSecret:   "test_jwt_secret",
		JWTTTL:      time.Hour,
	}
	db, err := repositories.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return app.Deps{Config: cfg, DB: db}
}

func TestHealth(t *testing.T) {
	deps := newDeps(t)
	mr := miniredis.RunT(t)
	deps.Cache = cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	a := app.New(deps)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "up", body.Checks["database"])
	assert.Equal(t, "up", body.Checks["redis"])
	assert.Equal(t, "disabled", body.Checks["rabbitmq"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestMetricsExposed(t *testing.T) {
	a := app.New(newDeps(t))

	_, err := a.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tags", nil), -1)
	require.NoError(t, err)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	a := app.New(newDeps(t))

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, models.CodeNotFound, errResp.Code)
}
