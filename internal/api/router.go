// Package api provides the HTTP API for the PEMS conformity service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/api/handler"
	"github.com/pemsgate/pemsgate/internal/api/middleware"
	"github.com/pemsgate/pemsgate/internal/trip"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version           string
	BuildTime         string
	Logger            zerolog.Logger
	ServiceName       string
	Metrics           *middleware.Metrics
	EvaluationMetrics *middleware.EvaluationMetrics
	TripService       *trip.Service
	Ready             handler.ReadyFunc
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pemsgate-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	// Initialize handlers
	ruleSet, ruleVersion := cfg.TripService.RuleSetName()
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, ruleSet, ruleVersion, cfg.Ready)
	schemaHandler := handler.NewSchemaHandler()
	tripHandler := handler.NewTripHandler(cfg.TripService, cfg.EvaluationMetrics, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Canonical dataset schemas for mapping UIs
		r.With(standardRateLimit).Get("/schemas", schemaHandler.List)

		// Evaluation runs the full normalization and metrics pipeline -
		// strict rate limiting
		r.Route("/trips", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Post("/{tripId}/evaluate", tripHandler.Evaluate)
		})

		// Stored reports
		r.Route("/reports", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/{tripId}", tripHandler.GetReport)
			r.Delete("/{tripId}", tripHandler.DeleteReport)
		})
	})

	return r
}
