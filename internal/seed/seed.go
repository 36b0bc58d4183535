// Package seed fills the database with demo data. It goes through the
// services so slugs, hashes and validation match real traffic.
package seed

import (
	"context"
	"fmt"
	"strings"

	"storefinder/internal/models"
	"storefinder/internal/services"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

// Tags offered when seeding stores.
var Tags = []string{"Wifi", "Open Late", "Family Friendly", "Vegetarian", "Licensed"}

// Seeded stores are scattered around this point.
var center = models.Location{Lng: -79.3832, Lat: 43.6532}

// Options sets how much data Run creates. Seed makes runs repeatable.
type Options struct {
	Users   int
	Stores  int
	Reviews int
	Seed    int64
}

// Result counts what Run created.
type Result struct {
	Users   int
	Stores  int
	Reviews int
}

// Seeder creates demo users, stores and reviews.
type Seeder struct {
	auth    *services.AuthService
	stores  *services.StoreService
	reviews *services.ReviewService
}

// New creates a Seeder.
func New(auth *services.AuthService, stores *services.StoreService, reviews *services.ReviewService) *Seeder {
	return &Seeder{auth: auth, stores: stores, reviews: reviews}
}

// Run creates the requested data. Stores need at least one user and
// reviews at least one store.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.Stores > 0 && opts.Users < 1 {
		return res, fmt.Errorf("seeding stores requires at least one user")
	}
	f := gofakeit.New(opts.Seed)

	userIDs := make([]string, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(f.FirstName()), i+1)
		user, _, err := s.auth.Register(ctx, services.RegisterInput{
			Name:            f.Name(),
			Email:           email,
			Password:        DemoPassword,
			ConfirmPassword: DemoPassword,
		})
		if err != nil {
			return res, fmt.Errorf("failed to seed user %s: %w", email, err)
		}
		userIDs = append(userIDs, user.ID)
		res.Users++
	}

	storeIDs := make([]string, 0, opts.Stores)
	for i := 0; i < opts.Stores; i++ {
		in := services.StoreInput{
			Name:        f.Company(),
			Description: f.Sentence(12),
			Tags:        pickTags(f),
			Location: models.Location{
				Lng:     center.Lng + f.Float64Range(-0.15, 0.15),
				Lat:     center.Lat + f.Float64Range(-0.1, 0.1),
				Address: fmt.Sprintf("%s %s", f.StreetNumber(), f.StreetName()),
			},
		}
		store, err := s.stores.CreateStore(ctx, userIDs[f.Number(0, len(userIDs)-1)], in)
		if err != nil {
			return res, fmt.Errorf("failed to seed store %q: %w", in.Name, err)
		}
		storeIDs = append(storeIDs, store.ID)
		res.Stores++
	}

	if opts.Reviews > 0 && len(storeIDs) == 0 {
		return res, fmt.Errorf("seeding reviews requires at least one store")
	}
	for i := 0; i < opts.Reviews; i++ {
		authorID := userIDs[f.Number(0, len(userIDs)-1)]
		storeID := storeIDs[f.Number(0, len(storeIDs)-1)]
		rating := f.Number(models.MinRating, models.MaxRating)
		if _, err := s.reviews.Create(ctx, authorID, storeID, rating, f.Sentence(10)); err != nil {
			return res, fmt.Errorf("failed to seed review: %w", err)
		}
		res.Reviews++
	}

	log.Ctx(ctx).Info().
		Int("users", res.Users).
		Int("stores", res.Stores).
		Int("reviews", res.Reviews).
		Msg("seed complete")
	return res, nil
}

func pickTags(f *gofakeit.Faker) []string {
	var tags []string
	for _, tag := range Tags {
		if f.Bool() {
			tags = append(tags, tag)
		}
	}
	return tags
}
