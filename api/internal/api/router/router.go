// api/internal/api/router/router.go
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"akatsuki/api/internal/api/handlers"
	api_middleware "akatsuki/api/internal/api/middleware"
	"akatsuki/api/internal/metrics"
)

const maxBodyBytes = 1_048_576

// RouterConfig defines the strict dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins   []string
	HealthHandler    *handlers.HealthHandler
	DevHandler       *handlers.DevHandler
	MailHandler      *handlers.MailHandler
	APIKeyMiddleware *api_middleware.APIKeyMiddleware
	RateLimiter      *api_middleware.RateLimiter
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Gateway Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api_middleware.ClientIP)
	r.Use(api_middleware.StructuredLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// 🛡️ Limit all incoming JSON requests to 1 Megabyte max (OOM Protection)
	r.Use(api_middleware.MaxBytes(maxBodyBytes))

	// 🛡️ In-memory token bucket rate limiting
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// =========================================================================
	// 2. Public Endpoints
	// =========================================================================

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Get("/health", cfg.HealthHandler.Check)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// =========================================================================
	// 3. API v1 Routing Tree (Requires the shared API key)
	// =========================================================================

	r.Route("/v1", func(r chi.Router) {
		r.Use(cfg.APIKeyMiddleware.RequireAPIKey)

		r.Post("/test", cfg.DevHandler.Test)
		r.Post("/mail", cfg.MailHandler.Send)
	})

	return r
}
