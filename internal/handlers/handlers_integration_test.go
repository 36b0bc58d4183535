package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefinder/internal/app"
	"storefinder/internal/config"
	"storefinder/internal/geo"
	"storefinder/internal/models"
	"storefinder/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	cfg := &config.Config{
		Env:         "test",
		PublicURL:   "http://localhost:8080",
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

	return app.New(app.Deps{Config: cfg, DB: db}), db
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":             "Wes",
		"email":            email,
		"password":         "password123",
		"confirm_password": "password123",
	}, &resp)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func storeBody(name string, lng, lat float64, tags ...string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "A fine place",
		"tags":        tags,
		"location": map[string]any{
			"type":        "Point",
			"coordinates": []float64{lng, lat},
			"address":     "1 King St",
		},
	}
}

func createStore(t *testing.T, app *fiber.App, token string, body map[string]any) models.Store {
	t.Helper()
	var store models.Store
	status := call(t, app, http.MethodPost, "/api/v1/stores", token, body, &store)
	require.Equal(t, fiber.StatusCreated, status)
	return store
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)
	register(t, app, "Wes@GoogleMail.com")

	var login struct {
		Token string `json:"token"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "wes@gmail.com", "password": "password123",
	}, &login)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, login.Token)

	var errResp models.ErrorResponse
	status = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "wes@gmail.com", "password": "wrong-password",
	}, &errResp)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, errResp.Code)

	status = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Wes", "email": "wes@gmail.com", "password": "password123", "confirm_password": "password123",
	}, &errResp)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, errResp.Code)

	status = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "", "email": "not-an-email", "password": "short", "confirm_password": "other",
	}, &errResp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errResp.Code)
	assert.Contains(t, errResp.Fields, "email")
	assert.Contains(t, errResp.Fields, "password")
	assert.Contains(t, errResp.Fields, "confirm_password")
}

func TestAccount(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "wes@example.com")
	register(t, app, "taken@example.com")

	var user models.User
	status := call(t, app, http.MethodGet, "/api/v1/account", token, nil, &user)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "wes@example.com", user.Email)
	assert.Empty(t, user.Hearts)

	status = call(t, app, http.MethodPut, "/api/v1/account", token, map[string]string{
		"name": "Wesley", "email": "wesley@example.com",
	}, &user)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Wesley", user.Name)

	var errResp models.ErrorResponse
	status = call(t, app, http.MethodPut, "/api/v1/account", token, map[string]string{
		"name": "Wesley", "email": "taken@example.com",
	}, &errResp)
	assert.Equal(t, fiber.StatusConflict, status)

	status = call(t, app, http.MethodGet, "/api/v1/account", "", nil, &errResp)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestPasswordReset(t *testing.T) {
	app, db := setupApp(t)
	register(t, app, "wes@example.com")

	status := call(t, app, http.MethodPost, "/api/v1/auth/forgot", "", map[string]string{"email": "wes@example.com"}, nil)
	assert.Equal(t, fiber.StatusAccepted, status)
	status = call(t, app, http.MethodPost, "/api/v1/auth/forgot", "", map[string]string{"email": "nobody@example.com"}, nil)
	assert.Equal(t, fiber.StatusAccepted, status)

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "wes@example.com").Error)
	require.NotNil(t, user.ResetPasswordToken)
	token := *user.ResetPasswordToken

	status = call(t, app, http.MethodGet, "/api/v1/auth/reset/"+token, "", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status = call(t, app, http.MethodGet, "/api/v1/auth/reset/unknown", "", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status = call(t, app, http.MethodPost, "/api/v1/auth/reset/"+token, "", map[string]string{
		"password": "newpassword1", "confirm_password": "mismatch1",
	}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status = call(t, app, http.MethodPost, "/api/v1/auth/reset/"+token, "", map[string]string{
		"password": "newpassword1", "confirm_password": "newpassword1",
	}, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "wes@example.com", "password": "newpassword1",
	}, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status = call(t, app, http.MethodGet, "/api/v1/auth/reset/"+token, "", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	expired := "expiredtoken"
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"reset_password_token": expired, "reset_password_expires": past}).Error)
	status = call(t, app, http.MethodGet, "/api/v1/auth/reset/"+expired, "", nil, nil)
	assert.Equal(t, fiber.StatusGone, status)
}

func TestStoreLifecycle(t *testing.T) {
	app, _ := setupApp(t)
	owner := register(t, app, "owner@example.com")
	other := register(t, app, "other@example.com")

	first := createStore(t, app, owner, storeBody("Coffee Shop", -79.38, 43.65, "Wifi", "Open Late"))
	assert.Equal(t, "coffee-shop", first.Slug)
	assert.Equal(t, []string{"Wifi", "Open Late"}, first.Tags)
	second := createStore(t, app, owner, storeBody("Coffee Shop", -79.38, 43.65))
	assert.Equal(t, "coffee-shop-2", second.Slug)

	var got models.Store
	status := call(t, app, http.MethodGet, "/api/v1/store/coffee-shop", "", nil, &got)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, -79.38, got.Location.Lng)

	var errResp models.ErrorResponse
	status = call(t, app, http.MethodGet, "/api/v1/stores/"+first.ID+"/edit", other, nil, &errResp)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, models.CodePermissionDenied, errResp.Code)

	status = call(t, app, http.MethodPut, "/api/v1/stores/"+first.ID, other, storeBody("Hijacked", 0, 0), &errResp)
	assert.Equal(t, fiber.StatusForbidden, status)

	status = call(t, app, http.MethodGet, "/api/v1/stores/"+first.ID+"/edit", owner, nil, &got)
	assert.Equal(t, fiber.StatusOK, status)

	status = call(t, app, http.MethodPut, "/api/v1/stores/"+first.ID, owner, storeBody("Coffee Shop", -79.38, 43.65, "Vegan"), &got)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "coffee-shop", got.Slug)
	assert.Equal(t, []string{"Vegan"}, got.Tags)

	status = call(t, app, http.MethodPut, "/api/v1/stores/"+first.ID, owner, storeBody("Tea House", -79.38, 43.65), &got)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "tea-house", got.Slug)

	status = call(t, app, http.MethodGet, "/api/v1/store/coffee-shop", "", nil, &errResp)
	assert.Equal(t, fiber.StatusNotFound, status)

	bad := storeBody("Nowhere", 0, 120)
	status = call(t, app, http.MethodPost, "/api/v1/stores", owner, bad, &errResp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, errResp.Fields, "coordinates")

	status = call(t, app, http.MethodPost, "/api/v1/stores", "", storeBody("Anon", 0, 0), &errResp)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateStoreRequiresCoordinates(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")

	tests := []struct {
		name     string
		location any
		fields   []string
	}{
		{"address only", map[string]any{"address": "1 King St"}, []string{"coordinates"}},
		{"empty coordinates", map[string]any{"coordinates": []float64{}, "address": "1 King St"}, []string{"coordinates"}},
		{"single value", map[string]any{"coordinates": []float64{1}, "address": "1 King St"}, []string{"coordinates"}},
		{"three values", map[string]any{"coordinates": []float64{1, 2, 3}, "address": "1 King St"}, []string{"coordinates"}},
		{"no location", nil, []string{"coordinates", "address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{"name": "No Coords"}
			if tt.location != nil {
				body["location"] = tt.location
			}

			var errResp models.ErrorResponse
			status := call(t, app, http.MethodPost, "/api/v1/stores", token, body, &errResp)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, errResp.Code)
			for _, field := range tt.fields {
				assert.Contains(t, errResp.Fields, field)
			}
		})
	}

	var page models.StorePage
	call(t, app, http.MethodGet, "/api/v1/stores", "", nil, &page)
	assert.Zero(t, page.Count)

	equator := createStore(t, app, token, storeBody("Null Island", 0, 0))
	assert.Equal(t, 0.0, equator.Location.Lng)
	assert.Equal(t, 0.0, equator.Location.Lat)
}

func TestStoreSlugsDoNotShadowListingRoutes(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")
	top := createStore(t, app, token, storeBody("Top", -79.38, 43.65))
	near := createStore(t, app, token, storeBody("Near", -79.38, 43.65))
	require.Equal(t, "top", top.Slug)
	require.Equal(t, "near", near.Slug)

	for _, want := range []models.Store{top, near} {
		var got models.Store
		status := call(t, app, http.MethodGet, "/api/v1/store/"+want.Slug, "", nil, &got)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, want.ID, got.ID)
	}

	var ranked []models.RankedStore
	status := call(t, app, http.MethodGet, "/api/v1/stores/top", "", nil, &ranked)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, ranked)
}

func TestStorePagination(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")
	for i := 0; i < 5; i++ {
		createStore(t, app, token, storeBody(fmt.Sprintf("Store %d", i), 0, 0))
	}

	var page models.StorePage
	status := call(t, app, http.MethodGet, "/api/v1/stores", "", nil, &page)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page.Stores, 4)
	assert.Equal(t, 2, page.Pages)
	assert.EqualValues(t, 5, page.Count)

	status = call(t, app, http.MethodGet, "/api/v1/stores/page/2", "", nil, &page)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page.Stores, 1)

	var errResp models.ErrorResponse
	status = call(t, app, http.MethodGet, "/api/v1/stores/page/3", "", nil, &errResp)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, errResp.Error, "last page is 2")

	status = call(t, app, http.MethodGet, "/api/v1/stores/page/abc", "", nil, &errResp)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestTagsAndSearch(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")
	createStore(t, app, token, storeBody("Coffee House", 0, 0, "wifi", "family"))
	createStore(t, app, token, storeBody("Tea Room", 0, 0, "wifi"))
	createStore(t, app, token, storeBody("Bare", 0, 0))

	var tagPage models.TagPage
	status := call(t, app, http.MethodGet, "/api/v1/tags", "", nil, &tagPage)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []models.TagCount{{Tag: "wifi", Count: 2}, {Tag: "family", Count: 1}}, tagPage.Tags)
	assert.Len(t, tagPage.Stores, 2)

	status = call(t, app, http.MethodGet, "/api/v1/tags/family", "", nil, &tagPage)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "family", tagPage.Tag)
	require.Len(t, tagPage.Stores, 1)
	assert.Equal(t, "coffee-house", tagPage.Stores[0].Slug)

	var found []models.Store
	status = call(t, app, http.MethodGet, "/api/v1/search?q=coffee", "", nil, &found)
	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, found, 1)
	assert.Equal(t, "coffee-house", found[0].Slug)

	status = call(t, app, http.MethodGet, "/api/v1/search?q=", "", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestNearbyStores(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")

	center := geo.Point{Lng: -79.3832, Lat: 43.6532}
	inside := geo.Offset(center, 9999)
	outside := geo.Offset(center, 10001)
	createStore(t, app, token, storeBody("Inside", inside.Lng, inside.Lat))
	createStore(t, app, token, storeBody("Outside", outside.Lng, outside.Lat))

	var nearby []models.NearbyStore
	path := fmt.Sprintf("/api/v1/stores/near?lng=%v&lat=%v", center.Lng, center.Lat)
	status := call(t, app, http.MethodGet, path, "", nil, &nearby)
	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, nearby, 1)
	assert.Equal(t, "inside", nearby[0].Slug)

	status = call(t, app, http.MethodGet, "/api/v1/stores/near?lng=abc&lat=1", "", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status = call(t, app, http.MethodGet, "/api/v1/stores/near?lng=0&lat=91", "", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestReviewsAndTopStores(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")
	mixed := createStore(t, app, token, storeBody("Mixed", 0, 0))
	single := createStore(t, app, token, storeBody("Single", 0, 0))

	review := func(storeID string, rating int) int {
		return call(t, app, http.MethodPost, "/api/v1/reviews/"+storeID, token, map[string]any{
			"rating": rating, "text": "Visited",
		}, nil)
	}
	assert.Equal(t, fiber.StatusCreated, review(mixed.ID, 3))
	assert.Equal(t, fiber.StatusCreated, review(mixed.ID, 5))
	assert.Equal(t, fiber.StatusCreated, review(single.ID, 5))
	assert.Equal(t, fiber.StatusBadRequest, review(single.ID, 6))
	assert.Equal(t, fiber.StatusNotFound, review(uuid.New().String(), 4))

	var top []models.RankedStore
	status := call(t, app, http.MethodGet, "/api/v1/stores/top", "", nil, &top)
	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, top, 1)
	assert.Equal(t, mixed.ID, top[0].ID)
	assert.InDelta(t, 4.0, top[0].AverageRating, 1e-9)

	var withReviews models.Store
	status = call(t, app, http.MethodGet, "/api/v1/store/mixed?include_reviews=true", "", nil, &withReviews)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, withReviews.Reviews, 2)

	var withoutReviews models.Store
	call(t, app, http.MethodGet, "/api/v1/store/mixed", "", nil, &withoutReviews)
	assert.Empty(t, withoutReviews.Reviews)
}

func TestHearts(t *testing.T) {
	app, _ := setupApp(t)
	token := register(t, app, "owner@example.com")
	store := createStore(t, app, token, storeBody("Loved", 0, 0))

	var toggled struct {
		Hearts []string `json:"hearts"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/stores/"+store.ID+"/heart", token, nil, &toggled)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{store.ID}, toggled.Hearts)

	var hearted []models.Store
	status = call(t, app, http.MethodGet, "/api/v1/hearts", token, nil, &hearted)
	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, hearted, 1)
	assert.Equal(t, "loved", hearted[0].Slug)

	status = call(t, app, http.MethodPost, "/api/v1/stores/"+store.ID+"/heart", token, nil, &toggled)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, toggled.Hearts)

	status = call(t, app, http.MethodPost, "/api/v1/stores/"+uuid.New().String()+"/heart", token, nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
