// Package config reads server settings from the environment, with a
// best-effort .env load for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	// How long a finished race stays in the registry before eviction.
	RaceRetention time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:          "8080",
		LogLevel:      "info",
		RaceRetention: 5 * time.Minute,
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RACE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RaceRetention = d
		}
	}
	return cfg
}
