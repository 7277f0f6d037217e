// Package config loads process configuration from the environment and
// query profiles from YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// Config holds runtime configuration for the API server and the CLI.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level

	AERONET AERONETConfig
	OTel    OTelConfig

	// RateLimitPerMinute caps /v1/observations requests per client IP.
	RateLimitPerMinute int

	// RequireTLS rejects requests not forwarded by a TLS proxy.
	RequireTLS bool
}

// AERONETConfig configures the upstream client.
type AERONETConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64

	// CacheDir enables the server-side response cache when non-empty.
	CacheDir string
}

// OTelConfig configures trace and metric export.
type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		AERONET: AERONETConfig{
			BaseURL:  getEnvOrDefault("AERONET_BASE_URL", aeronet.DefaultBaseURL),
			CacheDir: strings.TrimSpace(os.Getenv("AERONET_CACHE_DIR")),
		},
		OTel: OTelConfig{
			Endpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	timeout, err := time.ParseDuration(getEnvOrDefault("AERONET_TIMEOUT", "2m"))
	if err != nil {
		return cfg, fmt.Errorf("invalid AERONET_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return cfg, fmt.Errorf("invalid AERONET_TIMEOUT: must be positive, got %s", timeout)
	}
	cfg.AERONET.Timeout = timeout

	retries, err := strconv.ParseUint(getEnvOrDefault("AERONET_MAX_RETRIES", "0"), 10, 64)
	if err != nil {
		return cfg, fmt.Errorf("invalid AERONET_MAX_RETRIES: %w", err)
	}
	cfg.AERONET.MaxRetries = retries

	enabled, err := strconv.ParseBool(getEnvOrDefault("OTEL_ENABLED", "false"))
	if err != nil {
		return cfg, fmt.Errorf("invalid OTEL_ENABLED: %w", err)
	}
	cfg.OTel.Enabled = enabled

	limit, err := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil {
		return cfg, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if limit < 1 {
		return cfg, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: must be at least 1, got %d", limit)
	}
	cfg.RateLimitPerMinute = limit

	requireTLS, err := strconv.ParseBool(getEnvOrDefault("REQUIRE_TLS", "false"))
	if err != nil {
		return cfg, fmt.Errorf("invalid REQUIRE_TLS: %w", err)
	}
	cfg.RequireTLS = requireTLS

	return cfg, nil
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
