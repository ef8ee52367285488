// Package config loads deployment configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Database selects the gorm driver and connection string.
type Database struct {
	Driver string
	DSN    string
}

// Sampling holds the deployment-wide fallback sampling policy, used when a
// project has no row in sampling_configs.
type Sampling struct {
	DefaultRate            float64
	AlwaysKeepErrors       bool
	SlowRequestThresholdMs int64
}

// Tracing configures the service's own OTLP trace export.
type Tracing struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// RateLimit bounds requests per API key within a fixed window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Bootstrap controls local-dev seeding.
type Bootstrap struct {
	EnsureDefaultProject bool
}

// Config is resolved once at startup and injected everywhere via fx.
type Config struct {
	Environment    string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	Database       Database
	Sampling       Sampling
	Tracing        Tracing
	RateLimit      RateLimit
	Bootstrap      Bootstrap
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Load reads configuration from the environment. A .env file, if present,
// is merged in first for local development.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment:    envString("LUMEN_ENVIRONMENT", "development"),
		ServiceName:    envString("LUMEN_SERVICE_NAME", "lumen"),
		ServiceVersion: envString("LUMEN_SERVICE_VERSION", "dev"),
		HTTPAddr:       envString("LUMEN_HTTP_ADDR", ":8080"),
		Database: Database{
			Driver: envString("LUMEN_DB_DRIVER", "sqlite"),
			DSN:    envString("LUMEN_DB_DSN", "file:lumen.db?_fk=1"),
		},
		Sampling: Sampling{
			DefaultRate:            envFloat("LUMEN_SAMPLING_DEFAULT_RATE", 1.0),
			AlwaysKeepErrors:       envBool("LUMEN_SAMPLING_ALWAYS_KEEP_ERRORS", true),
			SlowRequestThresholdMs: envInt64("LUMEN_SAMPLING_SLOW_THRESHOLD_MS", 1000),
		},
		Tracing: Tracing{
			Enabled:          envBool("LUMEN_TRACING_ENABLED", false),
			ExporterEndpoint: envString("LUMEN_TRACING_ENDPOINT", ""),
			ExporterProtocol: envString("LUMEN_TRACING_PROTOCOL", "grpc"),
			SamplingRatio:    envFloat("LUMEN_TRACING_SAMPLING_RATIO", 0.1),
		},
		RateLimit: RateLimit{
			Limit:  int(envInt64("LUMEN_RATE_LIMIT", 600)),
			Window: envDuration("LUMEN_RATE_LIMIT_WINDOW", time.Minute),
		},
		Bootstrap: Bootstrap{
			EnsureDefaultProject: envBool("LUMEN_BOOTSTRAP_DEFAULT_PROJECT", true),
		},
	}
}

// Module provides the Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
