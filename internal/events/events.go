// Package events defines the domain events exchanged over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefinder/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// Routing keys.
const (
	StoreCreated  = "store.created"
	StoreUpdated  = "store.updated"
	ReviewCreated = "review.created"
	PasswordReset = "user.password_reset"
)

// Publisher sends an event. *rabbitmq.Client implements it.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// StoreEvent describes a created or updated store.
type StoreEvent struct {
	StoreID  string `json:"store_id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	AuthorID string `json:"author_id"`
}

// ReviewEvent describes a new review.
type ReviewEvent struct {
	ReviewID string `json:"review_id"`
	StoreID  string `json:"store_id"`
	AuthorID string `json:"author_id"`
	Rating   int    `json:"rating"`
}

// PasswordResetEvent carries the link a user needs to reset their password.
type PasswordResetEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Emit publishes payload when pub is set. Failures are logged, never
// returned: events are a side channel to the request.
func Emit(ctx context.Context, pub Publisher, routingKey string, payload any) {
	if pub == nil {
		log.Ctx(ctx).Debug().Str("routing_key", routingKey).Msg("event publisher not configured, skipping")
		return
	}
	if err := pub.Publish(routingKey, payload); err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
		return
	}
	metrics.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
}

// errMalformed marks payloads that can never be processed. They are
// dropped rather than requeued.
var errMalformed = errors.New("malformed event payload")

// Router dispatches deliveries to handlers by routing key.
type Router struct {
	handlers map[string]func(body []byte) error
}

// NewRouter returns a router with the default handlers installed.
func NewRouter() *Router {
	r := &Router{handlers: make(map[string]func(body []byte) error)}
	r.On(StoreCreated, logStoreEvent(StoreCreated))
	r.On(StoreUpdated, logStoreEvent(StoreUpdated))
	r.On(ReviewCreated, logReviewEvent)
	r.On(PasswordReset, logResetLink)
	return r
}

// On registers fn for routingKey, replacing any previous handler.
func (r *Router) On(routingKey string, fn func(body []byte) error) {
	r.handlers[routingKey] = fn
}

// Handle is a rabbitmq.Handler. Unknown routing keys and malformed
// payloads are acknowledged and logged so they do not loop through the
// queue; other handler errors requeue the delivery.
func (r *Router) Handle(msg amqp.Delivery) error {
	fn, ok := r.handlers[msg.RoutingKey]
	if !ok {
		log.Warn().Str("routing_key", msg.RoutingKey).Msg("no handler for event")
		return nil
	}
	if err := fn(msg.Body); err != nil {
		if errors.Is(err, errMalformed) {
			log.Warn().Err(err).Str("routing_key", msg.RoutingKey).Msg("dropping event")
			return nil
		}
		return err
	}
	return nil
}

func logStoreEvent(routingKey string) func(body []byte) error {
	return func(body []byte) error {
		var ev StoreEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: %s: %v", errMalformed, routingKey, err)
		}
		log.Info().Str("event", routingKey).Str("store_id", ev.StoreID).Str("slug", ev.Slug).Msg("store event")
		return nil
	}
}

func logReviewEvent(body []byte) error {
	var ev ReviewEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %s: %v", errMalformed, ReviewCreated, err)
	}
	log.Info().Str("event", ReviewCreated).Str("store_id", ev.StoreID).Int("rating", ev.Rating).Msg("review event")
	return nil
}

// logResetLink stands in for mail delivery, which lives outside this service.
func logResetLink(body []byte) error {
	var ev PasswordResetEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %s: %v", errMalformed, PasswordReset, err)
	}
	log.Info().Str("event", PasswordReset).Str("email", ev.Email).Str("reset_url", ev.ResetURL).Time("expires_at", ev.ExpiresAt).Msg("password reset requested")
	return nil
}
