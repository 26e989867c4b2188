package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment
// variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"PORT" envDefault:"8080"`

	// DatabaseURL is optional: without it the service uses the static
	// branding table and filesystem metadata sidecars.
	DatabaseURL string `env:"DATABASE_URL"`

	StoragePath       string `env:"STORAGE_PATH" envDefault:"./storage"`
	BrandingTablePath string `env:"BRANDING_TABLE_PATH"`
	WatermarkPath     string `env:"WATERMARK_PATH"`

	EngineBaseURL string `env:"ENGINE_BASE_URL"`
	EngineAPIKey  string `env:"ENGINE_API_KEY"`

	InferenceTimeout  time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"120s"`
	QueueCapacity     int           `env:"QUEUE_CAPACITY" envDefault:"128"`
	IdempotencyWindow time.Duration `env:"IDEMPOTENCY_WINDOW" envDefault:"1h"`
	MaxImageWidth     int           `env:"MAX_IMAGE_WIDTH" envDefault:"4096"`
	MaxImageHeight    int           `env:"MAX_IMAGE_HEIGHT" envDefault:"4096"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig reads .env files when present, then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("config: INFERENCE_TIMEOUT must be positive")
	}
	if cfg.MaxImageWidth <= 0 || cfg.MaxImageHeight <= 0 {
		return nil, fmt.Errorf("config: image size limits must be positive")
	}
	return cfg, nil
}
