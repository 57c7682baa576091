package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI string
	ListenAddr  string
	Timezone    string
	LogLevel    string
	CORSOrigin  string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := &Config{
		DatabaseURI: os.Getenv("DATABASE_URI"),
		ListenAddr:  getEnvOrDefault("LISTEN_ADDR", ":3000"),
		Timezone:    getEnvOrDefault("CALENDAR_TIMEZONE", "UTC"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigin:  getEnvOrDefault("CORS_ORIGIN", "*"),
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves Timezone, which decides what "today" means when a
// request carries no date.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CALENDAR_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
