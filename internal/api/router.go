package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/mealwise/mealwise/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Admin image generation
	GenerateImage http.HandlerFunc
	ImageStatus   http.HandlerFunc
	ListAudit     http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
	AdminOnly      func(http.Handler) http.Handler
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	Throttle           func(http.Handler) http.Handler

	// Readiness checks by dependency name. A nil check means "not configured".
	// Only checks listed in Required turn readiness to 503.
	Checks   map[string]HealthCheck
	Required []string
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness, always 200
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		required := make(map[string]bool, len(cfg.Required))
		for _, name := range cfg.Required {
			required[name] = true
		}

		for name, check := range cfg.Checks {
			switch {
			case check == nil:
				health[name] = "not configured"
			case check(r.Context()) != nil:
				health[name] = "unhealthy"
				health["status"] = "degraded"
				if required[name] {
					status = http.StatusServiceUnavailable
				}
			default:
				health[name] = "healthy"
			}
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Throttle != nil {
			r.Use(cfg.Throttle)
		}

		r.Route("/admin/images", func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.AdminOnly)

			r.Post("/generate", h.GenerateImage)
			r.Get("/status", h.ImageStatus)
			r.Get("/audit", h.ListAudit)
		})
	})

	return r
}
