// Package metrics declares the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SlugConflicts counts unique-key conflicts hit while assigning slugs.
	SlugConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefinder_slug_conflicts_total",
		Help: "Total number of slug unique-key conflicts retried",
	})

	// HeartsToggled counts favourite toggles by resulting action.
	HeartsToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_hearts_toggled_total",
		Help: "Total number of heart toggles by action",
	}, []string{"action"})

	// EventsPublished counts domain events by routing key and outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_events_published_total",
		Help: "Total number of domain events published",
	}, []string{"routing_key", "result"})
)
