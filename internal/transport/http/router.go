// Package httptransport assembles the HTTP surface: global middleware, the
// metrics and health endpoints, and every module's routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a route-registration function to Registrar.
type RegistrarFunc func(chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// RouterConfig wires the router's dependencies.
type RouterConfig struct {
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	OperatorSigningKey []byte

	// Public handlers skip operator auth: vendor webhooks authenticate out
	// of band.
	Public    []Registrar
	Protected []Registrar
}

// NewRouter builds the chi router with the standard middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, h := range cfg.Public {
		h.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireOperator(cfg.OperatorSigningKey, cfg.Logger))
		for _, h := range cfg.Protected {
			h.Register(r)
		}
	})

	return r
}
