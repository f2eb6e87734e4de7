package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	AllowedOrigin string
	PublicURL     string
	SessionMaxAge time.Duration
}

// Load reads configuration from the environment, with a .env file honored
// in development. Every key has a workable local default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          8080,
		AllowedOrigin: "http://localhost:5173",
		PublicURL:     "http://localhost:5173",
		SessionMaxAge: 4 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGIN")); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := strings.TrimSpace(os.Getenv("PUBLIC_URL")); v != "" {
		cfg.PublicURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_MAX_AGE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_MAX_AGE %q: %w", v, err)
		}
		cfg.SessionMaxAge = d
	}

	return cfg, nil
}
