package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"file:gidi.db"`

	Secret   string        `envconfig:"SECRET" default:"dev_secret"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	GeminiAPIKey  string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiTimeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"30s"`

	// Optional drug catalog CSV imported on startup.
	CatalogCSV string `envconfig:"CATALOG_CSV"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
