package handlers

import (
	"net/http"

	"github.com/blueshift-gg/solgov/api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowedOrigins []string
	// LookupLimiter rate limits the per-address routes; nil disables limiting.
	LookupLimiter *LookupLimiter
}

// NewRouter mounts the dashboard routes with CORS, metrics and recovery.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/version", h.GetVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tally", h.GetTally)
		r.Get("/clock", h.GetClock)

		r.Group(func(r chi.Router) {
			if cfg.LookupLimiter != nil {
				r.Use(LookupLimitMiddleware(cfg.LookupLimiter))
			}
			r.Get("/eligibility/{address}", h.GetEligibility)
			r.Get("/claim-status/{address}", h.GetClaimStatus)
		})
	})

	return r
}
