package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/middleware"
)

// RouterConfig carries the cross-cutting settings of the HTTP stack.
type RouterConfig struct {
	CORSOrigin     string
	RequestTimeout time.Duration
	ServiceName    string
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	Health         Health
	Metrics        http.Handler // nil unless the prometheus exporter is selected
}

// NewRouter builds the chi router with the gateway middleware stack and all routes.
func NewRouter(cfg RouterConfig, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Tenant)
	r.Use(chimw.RealIP)
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.CORSOrigin))
	if cfg.ServiceName != "" {
		r.Use(hcotel.HTTPMiddleware(cfg.ServiceName))
	}

	r.Get("/health", cfg.Health.Handler())
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		MountRoutes(r, h)
	})

	return r
}

// MountRoutes registers the API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/ask", h.HandleAsk)
	})
}
