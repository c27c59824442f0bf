package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Face model backend
	ModelProvider string `envconfig:"FACE_MODEL" default:"deepface"`
	DeepFaceURL   string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`

	// Matching
	MatchThreshold float64       `envconfig:"MATCH_THRESHOLD" default:"0.6"`
	GalleryTTL     time.Duration `envconfig:"GALLERY_CACHE_TTL" default:"10m"`

	// Security
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"presenca-api"`
}

func Load() (*Config, error) {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold >= 1 {
		return nil, fmt.Errorf("MATCH_THRESHOLD must be in (0, 1), got %v", cfg.MatchThreshold)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
