// Package config loads and validates the application configuration from the
// environment. A .env file is loaded first (path overridable via ENV_FILE) so
// local development matches the container setup, then the environment is
// parsed into typed structs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pkgconfig "devto-news/pkg/config"
)

// Feed provider names accepted by FEED_PROVIDER.
const (
	ProviderDevto = "devto"
	ProviderRSS   = "rss"
)

// Trace export policies accepted by TRACE_EXPORT_POLICY.
const (
	ExportPolicyAnySuccess = "any-success"
	ExportPolicyAllSuccess = "all-success"
)

// Config holds the full application configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Version    string `env:"VERSION" envDefault:"dev"`

	Mongo     MongoConfig
	Telemetry TelemetryConfig
	Feed      FeedConfig
	RateLimit RateLimitConfig
}

// MongoConfig holds connection parameters for the telemetry datastore.
// MONGO_URI takes precedence; otherwise the connection is assembled from the
// individual host/port/credential fields.
type MongoConfig struct {
	URI        string `env:"MONGO_URI"`
	Host       string `env:"MONGO_HOST" envDefault:"localhost"`
	Port       int    `env:"MONGO_PORT" envDefault:"27017"`
	Username   string `env:"MONGO_USERNAME"`
	Password   string `env:"MONGO_PASSWORD"`
	AuthSource string `env:"MONGO_AUTH_SOURCE"`
	Database   string `env:"MONGO_DB_NAME" envDefault:"telemetry"`

	LogCollection    string `env:"MONGO_LOG_COLLECTION" envDefault:"logs"`
	TraceCollection  string `env:"MONGO_TRACE_COLLECTION" envDefault:"traces"`
	MetricCollection string `env:"MONGO_METRIC_COLLECTION" envDefault:"metrics"`

	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	InsertTimeout  time.Duration `env:"MONGO_INSERT_TIMEOUT" envDefault:"5s"`
}

// TelemetryConfig holds service identity and exporter behavior settings.
type TelemetryConfig struct {
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"devto-news-service"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0"`
	InstanceID     string `env:"OTEL_SERVICE_INSTANCE_ID" envDefault:"local-instance"`
	Environment    string `env:"APP_ENV" envDefault:"development"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// FlushInterval is the metric collection cadence. Counters are visible in
	// storage with staleness bounded by this interval.
	FlushInterval time.Duration `env:"METRICS_FLUSH_INTERVAL" envDefault:"60s"`

	// TraceExportPolicy controls how a partially failed span batch is
	// reported to the SDK: "any-success" or "all-success".
	TraceExportPolicy string `env:"TRACE_EXPORT_POLICY" envDefault:"any-success"`
}

// FeedConfig selects and configures the upstream news provider.
type FeedConfig struct {
	Provider string        `env:"FEED_PROVIDER" envDefault:"devto"`
	DevtoURL string        `env:"DEVTO_API_URL" envDefault:"https://dev.to/api/articles"`
	RSSURL   string        `env:"FEED_RSS_URL"`
	Timeout  time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`
}

// RateLimitConfig configures per-client rate limiting on the news endpoint.
type RateLimitConfig struct {
	Enabled bool    `env:"RATELIMIT_ENABLED" envDefault:"true"`
	RPS     float64 `env:"RATELIMIT_RPS" envDefault:"5"`
	Burst   int     `env:"RATELIMIT_BURST" envDefault:"10"`
}

// Load reads the .env file (if present), parses the environment into a Config
// and validates it.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// Missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load(envFile)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that tag-level parsing cannot express.
func (c Config) Validate() error {
	if err := pkgconfig.ValidatePositiveDuration(c.Mongo.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid MONGO_CONNECT_TIMEOUT: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Mongo.InsertTimeout); err != nil {
		return fmt.Errorf("invalid MONGO_INSERT_TIMEOUT: %w", err)
	}
	if err := pkgconfig.ValidateDurationRange(c.Telemetry.FlushInterval, time.Second, time.Hour); err != nil {
		return fmt.Errorf("invalid METRICS_FLUSH_INTERVAL: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Feed.Timeout); err != nil {
		return fmt.Errorf("invalid FEED_TIMEOUT: %w", err)
	}

	switch c.Telemetry.TraceExportPolicy {
	case ExportPolicyAnySuccess, ExportPolicyAllSuccess:
	default:
		return fmt.Errorf("invalid TRACE_EXPORT_POLICY %q: must be %q or %q",
			c.Telemetry.TraceExportPolicy, ExportPolicyAnySuccess, ExportPolicyAllSuccess)
	}

	switch c.Feed.Provider {
	case ProviderDevto:
	case ProviderRSS:
		if c.Feed.RSSURL == "" {
			return fmt.Errorf("FEED_RSS_URL is required when FEED_PROVIDER=%s", ProviderRSS)
		}
	default:
		return fmt.Errorf("invalid FEED_PROVIDER %q: must be %q or %q",
			c.Feed.Provider, ProviderDevto, ProviderRSS)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid RATELIMIT_RPS %v: must be positive", c.RateLimit.RPS)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("invalid RATELIMIT_BURST %d: must be at least 1", c.RateLimit.Burst)
		}
	}

	return nil
}
