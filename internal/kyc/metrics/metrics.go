package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the onboarding profile flow and
// the status projector.
type Metrics struct {
	ProfilesSealed   prometheus.Counter
	WatchlistFlags   prometheus.Counter
	StepRejections   *prometheus.CounterVec
	SyncFailures     *prometheus.CounterVec
	VaultTokenIssued *prometheus.CounterVec
}

// New creates the KYC metrics on the given registerer. Pass nil for the
// default registry; tests pass a fresh one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ProfilesSealed: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_profiles_sealed_total",
			Help: "Profiles that completed final submission.",
		}),
		WatchlistFlags: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_watchlist_flags_total",
			Help: "Profiles flagged for manual review by screening hits.",
		}),
		StepRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_step_rejections_total",
			Help: "Onboarding steps rejected before persistence, by step.",
		}, []string{"step"}),
		SyncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_connection_sync_failures_total",
			Help: "Per-connection sync failures, by system.",
		}, []string{"system"}),
		VaultTokenIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_vault_tokens_total",
			Help: "Vault access tokens by source (minted, cached, refreshed).",
		}, []string{"source"}),
	}
}
