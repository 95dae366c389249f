package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for customer resolution and
// connection management.
type Metrics struct {
	CustomersResolved  *prometheus.CounterVec
	IntegrityConflicts prometheus.Counter
	TokenRefreshes     *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
}

// New creates the customer metrics on the given registerer. Pass nil for the
// default registry; tests pass a fresh one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CustomersResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_customers_resolved_total",
			Help: "Customer resolutions by outcome (created, adopted, matched).",
		}, []string{"outcome"}),
		IntegrityConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_integrity_conflicts_total",
			Help: "Resolutions aborted because two customers claimed the same identity pair.",
		}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_token_refreshes_total",
			Help: "Connection token refreshes by system and outcome.",
		}, []string{"system", "outcome"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_status_transitions_total",
			Help: "KYC status transitions applied, by system and resulting status.",
		}, []string{"system", "to"}),
	}
}
