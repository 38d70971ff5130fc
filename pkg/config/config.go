package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/platinummonkey/geoqc/pkg/observability"
)

// DefaultEnvFiles are loaded, when present, before the environment is parsed.
// Variables already set in the process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds process configuration for geoqc
type Config struct {
	Log       LogConfig
	Run       RunConfig
	Store     StoreConfig
	Cache     CacheConfig
	S3        S3Config
	Telemetry TelemetryConfig
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `env:"GEOQC_LOG_LEVEL" envDefault:"info"`
	Format string `env:"GEOQC_LOG_FORMAT" envDefault:"text"`
}

// RunConfig controls validation runs
type RunConfig struct {
	Workers   int    `env:"GEOQC_WORKERS" envDefault:"4"`
	RulesFile string `env:"GEOQC_RULES_FILE"`
}

// StoreConfig points at the report history database. An empty DSN disables
// history.
type StoreConfig struct {
	DSN string `env:"GEOQC_STORE_DSN"`
}

// CacheConfig sizes the finding cache used by watch and schedule
type CacheConfig struct {
	Size int           `env:"GEOQC_CACHE_SIZE" envDefault:"256"`
	TTL  time.Duration `env:"GEOQC_CACHE_TTL" envDefault:"1h"`
}

// S3Config configures the s3:// dataset driver
type S3Config struct {
	Region          string `env:"GEOQC_S3_REGION"`
	Endpoint        string `env:"GEOQC_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"GEOQC_S3_USE_PATH_STYLE" envDefault:"false"`
	AccessKeyID     string `env:"GEOQC_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"GEOQC_S3_SECRET_ACCESS_KEY"`
}

// TelemetryConfig holds metrics and OpenTelemetry settings
type TelemetryConfig struct {
	MetricsFile     string `env:"GEOQC_METRICS_FILE"`
	MetricsAddr     string `env:"GEOQC_METRICS_ADDR"`
	OTelEnabled     bool   `env:"GEOQC_OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string `env:"GEOQC_OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelServiceName string `env:"GEOQC_OTEL_SERVICE_NAME" envDefault:"geoqc"`
	OTelInsecure    bool   `env:"GEOQC_OTEL_INSECURE" envDefault:"true"`
}

// Load reads the env files that exist, parses the environment and validates
// the result
func Load() (*Config, error) {
	return LoadWithEnvFiles(DefaultEnvFiles...)
}

// LoadWithEnvFiles is Load with an explicit list of env files
func LoadWithEnvFiles(files ...string) (*Config, error) {
	if _, err := LoadEnv(files); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads the given env files that exist and returns how many were read
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch observability.LogFormat(strings.ToLower(c.Log.Format)) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Run.Workers)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must be non-negative, got %d", c.Cache.Size)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL must be non-negative, got %s", c.Cache.TTL)
	}

	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3 access key ID and secret access key must be set together")
	}

	if c.Telemetry.OTelEnabled {
		if c.Telemetry.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Telemetry.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Log.Level)
}

// LogFormat returns the configured log encoding
func (c *Config) LogFormat() observability.LogFormat {
	return observability.LogFormat(strings.ToLower(c.Log.Format))
}

// NewLogger builds the process logger described by the configuration
func (c *Config) NewLogger() *observability.Logger {
	return observability.NewLogger(c.LogLevel(), c.LogFormat(), nil)
}

// OTel maps the telemetry settings onto the observability initialiser
func (c *Config) OTel(version string) observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Telemetry.OTelEnabled,
		Endpoint:       c.Telemetry.OTelEndpoint,
		ServiceName:    c.Telemetry.OTelServiceName,
		ServiceVersion: version,
		Insecure:       c.Telemetry.OTelInsecure,
	}
}
