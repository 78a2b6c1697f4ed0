package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maksimkurb/netstate/src/internal/engine"
)

// NewRouter creates a new HTTP router with all API endpoints.
func NewRouter(e *engine.Engine) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(Recovery)
	r.Use(Logger)
	r.Use(PrivateSubnetOnly)
	r.Use(JSONContentType)

	h := NewHandler(e)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/state", h.ApplyState)
		r.Post("/diff", h.DiffState)
	})

	r.Get("/health", h.CheckHealth)
	r.Handle("/metrics", promhttp.HandlerFor(e.Metrics().Registry(), promhttp.HandlerOpts{}))

	registerPprof(r)

	return r
}
