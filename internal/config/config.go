// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for shortlinks (e.g., https://ep.example.com)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Ingestion
	IngestMaxBatchSize int `env:"INGEST_MAX_BATCH_SIZE" envDefault:"200"`

	// Rate limiting. Each scope is a fixed window with a cap; a cap of
	// zero disables the scope.
	RateLimitSessionCap     int           `env:"RATE_LIMIT_SESSION_CAP" envDefault:"600"`
	RateLimitSessionWindow  time.Duration `env:"RATE_LIMIT_SESSION_WINDOW" envDefault:"1m"`
	RateLimitAdminCap       int           `env:"RATE_LIMIT_ADMIN_CAP" envDefault:"20"`
	RateLimitAdminWindow    time.Duration `env:"RATE_LIMIT_ADMIN_WINDOW" envDefault:"1m"`
	RateLimitRedirectCap    int           `env:"RATE_LIMIT_REDIRECT_CAP" envDefault:"120"`
	RateLimitRedirectWindow time.Duration `env:"RATE_LIMIT_REDIRECT_WINDOW" envDefault:"1m"`

	// Report export. Disabled unless a target URL is configured.
	ExportTargetURL string        `env:"EXPORT_TARGET_URL" envDefault:""`
	ExportSecret    string        `env:"EXPORT_SECRET" envDefault:""`
	ExportInterval  time.Duration `env:"EXPORT_INTERVAL" envDefault:"15m"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ExportEnabled returns true if report export is configured.
func (c *Config) ExportEnabled() bool {
	return c.ExportTargetURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
