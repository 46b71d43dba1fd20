package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string `env:"PORT" env-default:"8787"`
	Env  string `env:"ENV"  env-default:"development"`

	// Remote backend
	APIBaseURL string        `env:"API_BASE_URL" env-default:"http://localhost:8000"`
	APITimeout time.Duration `env:"API_TIMEOUT"  env-default:"30s"`

	// Local key-value store
	StoreDriver    string `env:"STORE_DRIVER"    env-default:"memory"` // "memory" | "redis" | "postgres"
	StoreNamespace string `env:"STORE_NAMESPACE" env-default:"default"`
	RedisURL       string `env:"REDIS_URL"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Cloud sync
	SyncPushDelay    time.Duration `env:"SYNC_PUSH_DELAY"    env-default:"1s"`
	SyncPullInterval time.Duration `env:"SYNC_PULL_INTERVAL" env-default:"0s"`
	StatusClearAfter time.Duration `env:"STATUS_CLEAR_AFTER" env-default:"3s"`

	// Gemini AI
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`

	// Limits
	AIRateLimit int   `env:"AI_RATE_LIMIT" env-default:"20"`
	UploadMaxMB int64 `env:"UPLOAD_MAX_MB" env-default:"10"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:5173"`

	Log LogConfig
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("API_BASE_URL is not a valid URL: %w", err))
	}

	switch strings.ToLower(c.StoreDriver) {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_DRIVER=redis"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.SyncPushDelay < 0 {
		errs = append(errs, errors.New("SYNC_PUSH_DELAY must not be negative"))
	}
	if c.SyncPullInterval < 0 {
		errs = append(errs, errors.New("SYNC_PULL_INTERVAL must not be negative"))
	}
	if c.StatusClearAfter <= 0 {
		errs = append(errs, errors.New("STATUS_CLEAR_AFTER must be positive"))
	}
	if c.AIRateLimit <= 0 {
		errs = append(errs, errors.New("AI_RATE_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
