// Package main provides the entrypoint for the AERONET API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/aerosolkit/aeronet/internal/api"
	"github.com/aerosolkit/aeronet/internal/api/middleware"
	"github.com/aerosolkit/aeronet/internal/config"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/internal/telemetry"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aeronet-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting AERONET API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
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

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.OTel.Endpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()
	breaker := resilience.DefaultCircuitBreakerConfig(aeronet.ProviderName)
	breaker.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
	client, err := aeronet.NewClient(aeronet.ClientConfig{
		BaseURL: cfg.AERONET.BaseURL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:           aeronet.ProviderName,
			Timeout:        cfg.AERONET.Timeout,
			MaxRetries:     cfg.AERONET.MaxRetries,
			CircuitBreaker: &breaker,
			Registry:       registry,
		}),
		Logger: log.With().Str("provider", aeronet.ProviderName).Logger(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create AERONET client")
		os.Exit(1)
	}
	log.Info().
		Str("base_url", client.BaseURL()).
		Dur("timeout", cfg.AERONET.Timeout).
		Uint64("max_retries", cfg.AERONET.MaxRetries).
		Str("cache_dir", cfg.AERONET.CacheDir).
		Msg("AERONET client initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:               Version,
		BuildTime:             BuildTime,
		Logger:                log,
		ServiceName:           serviceName,
		Metrics:               metrics,
		Client:                client,
		Registry:              registry,
		CacheDir:              cfg.AERONET.CacheDir,
		ObservationsPerMinute: cfg.RateLimitPerMinute,
		RequireTLS:            cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Upstream requests may take the full AERONET timeout.
		WriteTimeout: cfg.AERONET.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
