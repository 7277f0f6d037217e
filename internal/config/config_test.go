package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerosolkit/aeronet/internal/config"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

var envKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL",
	"AERONET_BASE_URL", "AERONET_TIMEOUT", "AERONET_MAX_RETRIES", "AERONET_CACHE_DIR",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "RATE_LIMIT_PER_MINUTE", "REQUIRE_TLS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, aeronet.DefaultBaseURL, cfg.AERONET.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.AERONET.Timeout)
	assert.Equal(t, uint64(0), cfg.AERONET.MaxRetries)
	assert.Empty(t, cfg.AERONET.CacheDir)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTel.Endpoint)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.False(t, cfg.RequireTLS)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("AERONET_BASE_URL", "http://localhost:1234/print")
	t.Setenv("AERONET_TIMEOUT", "45s")
	t.Setenv("AERONET_MAX_RETRIES", "2")
	t.Setenv("AERONET_CACHE_DIR", "/var/cache/aeronet")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("REQUIRE_TLS", "1")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "http://localhost:1234/print", cfg.AERONET.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.AERONET.Timeout)
	assert.Equal(t, uint64(2), cfg.AERONET.MaxRetries)
	assert.Equal(t, "/var/cache/aeronet", cfg.AERONET.CacheDir)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, 5, cfg.RateLimitPerMinute)
	assert.True(t, cfg.RequireTLS)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "LOG_LEVEL", value: "loud"},
		{key: "AERONET_TIMEOUT", value: "soon"},
		{key: "AERONET_TIMEOUT", value: "-1s"},
		{key: "AERONET_MAX_RETRIES", value: "-1"},
		{key: "OTEL_ENABLED", value: "maybe"},
		{key: "RATE_LIMIT_PER_MINUTE", value: "0"},
		{key: "REQUIRE_TLS", value: "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already set, even to "".
	os.Unsetenv("APP_PORT")
	os.Unsetenv("AERONET_CACHE_DIR")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("APP_PORT=7070\nAERONET_CACHE_DIR=/tmp/aeronet\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/tmp/aeronet", cfg.AERONET.CacheDir)
}
