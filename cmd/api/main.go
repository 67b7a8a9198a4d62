// Package main provides the entrypoint for the PEMS conformity API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/api"
	"github.com/pemsgate/pemsgate/internal/api/handler"
	"github.com/pemsgate/pemsgate/internal/api/middleware"
	"github.com/pemsgate/pemsgate/internal/database"
	"github.com/pemsgate/pemsgate/internal/report"
	"github.com/pemsgate/pemsgate/internal/telemetry"
	"github.com/pemsgate/pemsgate/internal/trip"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pemsgate-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting PEMS conformity API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	rulePath := os.Getenv("RULE_FILE")
	if rulePath == "" {
		rulePath = "configs/eu7_ld.yaml"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	evalMetrics, err := middleware.NewEvaluationMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize evaluation metrics")
		os.Exit(1)
	}

	// Load the rule document
	ruleDoc, err := os.ReadFile(rulePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", rulePath).Msg("failed to read rule file")
	}

	// Report storage: PostgreSQL when configured, in-memory otherwise
	var repo report.Repository
	var ready handler.ReadyFunc
	if os.Getenv("DB_DISABLED") == "true" {
		repo = report.NewInMemoryRepository()
		log.Warn().Msg("database disabled - reports are stored in memory only")
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		pgRepo := report.NewPostgresRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure report schema")
		}
		repo = pgRepo
		ready = pool.Ping
	}

	// Evaluation service
	tripService, err := trip.NewService(trip.Config{
		RuleDoc:    ruleDoc,
		Repository: repo,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", rulePath).Msg("failed to initialize evaluation service")
	}
	ruleSet, ruleVersion := tripService.RuleSetName()
	log.Info().
		Str("rule_set", ruleSet).
		Str("rule_version", ruleVersion).
		Msg("evaluation service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		ServiceName:       serviceName,
		Metrics:           metrics,
		EvaluationMetrics: evalMetrics,
		TripService:       tripService,
		Ready:             ready,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
