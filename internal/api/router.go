// Package api provides the HTTP API in front of the AERONET web service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aerosolkit/aeronet/internal/api/handler"
	"github.com/aerosolkit/aeronet/internal/api/middleware"
	"github.com/aerosolkit/aeronet/internal/api/response"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// DefaultObservationsPerMinute is the per-IP limit on /v1/observations when
// RouterConfig.ObservationsPerMinute is zero.
const DefaultObservationsPerMinute = 30

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Client serves /v1/options and /v1/observations.
	Client *aeronet.Client

	// Registry backs /v1/ops/status. May be nil.
	Registry *resilience.Registry

	// CacheDir enables the raw response cache for /v1/observations.
	CacheDir string

	ObservationsPerMinute int
	RequireTLS            bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aeronet-api"
	}
	perMinute := cfg.ObservationsPerMinute
	if perMinute == 0 {
		perMinute = DefaultObservationsPerMinute
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	optionsHandler := handler.NewOptionsHandler(cfg.Client)
	observationsHandler := handler.NewObservationsHandler(cfg.Client, cfg.CacheDir, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	observationsRateLimit := middleware.RateLimitByIP(middleware.PerMinute(perMinute))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/options", optionsHandler.ListOptions)

		// Each observations request can hold an upstream call for minutes.
		r.With(observationsRateLimit).Get("/observations", observationsHandler.GetObservations)
	})

	return r
}
