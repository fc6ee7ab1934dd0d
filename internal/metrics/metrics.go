// Package metrics provides Prometheus metrics for the matching service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	// MatchComputations tracks engine runs by direction (listing|investor)
	MatchComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "match",
			Name:      "computations_total",
			Help:      "Total number of match computations by direction",
		},
		[]string{"direction"},
	)

	// PairsScored tracks candidate pairs scored
	PairsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "match",
			Name:      "pairs_scored_total",
			Help:      "Total number of investor/listing pairs scored",
		},
	)

	// MatchDuration tracks how long a full computation takes
	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchmaker",
			Subsystem: "match",
			Name:      "duration_seconds",
			Help:      "Duration of match computations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"direction"},
	)

	// Notifications tracks notification attempts by outcome
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of match notifications by outcome",
		},
		[]string{"outcome"},
	)

	// ClaimConflicts tracks pairs skipped because another run holds the claim
	ClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "ledger",
			Name:      "claim_conflicts_total",
			Help:      "Total number of ledger claims lost to a concurrent holder",
		},
	)

	// TriggerEvents tracks consumed trigger events by type and result
	TriggerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Total number of trigger events consumed by type and result",
		},
		[]string{"type", "result"},
	)
)

// Handler returns the HTTP handler that exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
