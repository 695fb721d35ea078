// Package config loads process configuration from FOODFLOW_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete runtime configuration of the foodflow server.
type Config struct {
	HTTPAddr        string        `env:"FOODFLOW_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"FOODFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AllowedOrigins are the websocket origin patterns accepted besides the
	// server's own host.
	AllowedOrigins []string `env:"FOODFLOW_ALLOWED_ORIGINS" envSeparator:","`

	Storage Storage
	Blob    Blob
	Advisor Advisor
	Session Session
	Log     Log

	SeedDemo        bool `env:"FOODFLOW_SEED_DEMO" envDefault:"true"`
	SyncConcurrency int  `env:"FOODFLOW_SYNC_CONCURRENCY" envDefault:"4"`
	ExportWorkers   int  `env:"FOODFLOW_EXPORT_WORKERS" envDefault:"2"`
}

// Storage selects the persistent store.
type Storage struct {
	Driver      string `env:"FOODFLOW_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"FOODFLOW_SQLITE_PATH" envDefault:"foodflow.db"`
	PostgresDSN string `env:"FOODFLOW_POSTGRES_DSN"`
}

// Blob selects the artifact store used by exports.
type Blob struct {
	Driver         string `env:"FOODFLOW_BLOB_DRIVER" envDefault:"fs"`
	FSRoot         string `env:"FOODFLOW_BLOB_FS_ROOT" envDefault:"./exports"`
	FSBaseURL      string `env:"FOODFLOW_BLOB_FS_BASE_URL"`
	S3Region       string `env:"FOODFLOW_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Bucket       string `env:"FOODFLOW_BLOB_S3_BUCKET"`
	S3Prefix       string `env:"FOODFLOW_BLOB_S3_PREFIX"`
	S3Endpoint     string `env:"FOODFLOW_BLOB_S3_ENDPOINT"`
	S3AccessKeyID  string `env:"FOODFLOW_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"FOODFLOW_BLOB_S3_SECRET_ACCESS_KEY"`
	S3SessionToken string `env:"FOODFLOW_BLOB_S3_SESSION_TOKEN"`
	S3PathStyle    bool   `env:"FOODFLOW_BLOB_S3_PATH_STYLE" envDefault:"false"`
}

// Advisor configures the recommendation generator.
type Advisor struct {
	Provider        string        `env:"FOODFLOW_ADVISOR_PROVIDER" envDefault:"static"`
	GeminiAPIKey    string        `env:"FOODFLOW_GEMINI_API_KEY"`
	GeminiModel     string        `env:"FOODFLOW_GEMINI_MODEL" envDefault:"gemini-3-flash-preview"`
	AnthropicAPIKey string        `env:"FOODFLOW_ANTHROPIC_API_KEY"`
	AnthropicModel  string        `env:"FOODFLOW_ANTHROPIC_MODEL"`
	Timeout         time.Duration `env:"FOODFLOW_ADVISOR_TIMEOUT" envDefault:"20s"`
}

// Session configures bearer tokens.
type Session struct {
	Secret string        `env:"FOODFLOW_SESSION_SECRET"`
	TTL    time.Duration `env:"FOODFLOW_SESSION_TTL" envDefault:"24h"`
}

// Log configures the process logger.
type Log struct {
	Level      string `env:"FOODFLOW_LOG_LEVEL" envDefault:"info"`
	Format     string `env:"FOODFLOW_LOG_FORMAT" envDefault:"json"`
	File       string `env:"FOODFLOW_LOG_FILE"`
	MaxSizeMB  int    `env:"FOODFLOW_LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"FOODFLOW_LOG_MAX_BACKUPS" envDefault:"3"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses configuration from the supplied variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadAdvisor parses only the advisor settings. One-off commands use it so
// they run without a session secret or storage configuration.
func LoadAdvisor() (Advisor, error) {
	var cfg Advisor
	if err := env.Parse(&cfg); err != nil {
		return Advisor{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("FOODFLOW_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if strings.TrimSpace(c.Blob.S3Bucket) == "" {
			return fmt.Errorf("FOODFLOW_BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}

	switch c.Advisor.Provider {
	case "static":
	case "gemini":
		if c.Advisor.GeminiAPIKey == "" {
			return fmt.Errorf("FOODFLOW_GEMINI_API_KEY is required for the gemini provider")
		}
	case "anthropic":
		if c.Advisor.AnthropicAPIKey == "" {
			return fmt.Errorf("FOODFLOW_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("unknown advisor provider %q", c.Advisor.Provider)
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("FOODFLOW_SESSION_SECRET must be at least 32 bytes")
	}
	if c.SyncConcurrency < 1 {
		return fmt.Errorf("FOODFLOW_SYNC_CONCURRENCY must be positive")
	}
	if c.ExportWorkers < 1 {
		return fmt.Errorf("FOODFLOW_EXPORT_WORKERS must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
