package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all environment configuration
type Config struct {
	Port          int
	StoreDriver   string // "sqlite" or "postgres"
	SQLitePath    string
	DatabaseURL   string
	UpstreamURL   string
	UpstreamToken string

	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxRetries  int
	Expiry      time.Duration

	FlushInterval       time.Duration
	SweepInterval       time.Duration
	SubmitTimeout       time.Duration
	DBConnectionTimeout time.Duration
}

// helper: read env var as int seconds → convert to duration
func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(name); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	if value, exists := os.LookupEnv(name); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultVal
}

func getEnv(name, defaultVal string) string {
	if value, exists := os.LookupEnv(name); exists {
		return value
	}
	return defaultVal
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8080),
		StoreDriver:   getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", "share-relay.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		UpstreamURL:   getEnv("UPSTREAM_URL", ""),
		UpstreamToken: getEnv("UPSTREAM_TOKEN", ""),

		BackoffBase: getEnvAsDuration("BACKOFF_BASE", 5*time.Second),
		BackoffMax:  getEnvAsDuration("BACKOFF_MAX", time.Hour),
		MaxRetries:  getEnvAsInt("MAX_RETRIES", 10),
		Expiry:      getEnvAsDuration("EXPIRY", 7*24*time.Hour),

		FlushInterval:       getEnvAsDuration("FLUSH_INTERVAL", 30*time.Second),
		SweepInterval:       getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
		SubmitTimeout:       getEnvAsDuration("SUBMIT_TIMEOUT", 30*time.Second),
		DBConnectionTimeout: getEnvAsDuration("DB_CONNECTION_TIMEOUT", 5*time.Second),
	}

	// Basic validation
	if cfg.UpstreamURL == "" {
		return nil, errors.New("UPSTREAM_URL is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	switch cfg.StoreDriver {
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("invalid MAX_RETRIES: %d", cfg.MaxRetries)
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffMax < cfg.BackoffBase {
		return nil, fmt.Errorf("invalid backoff window: base=%s max=%s", cfg.BackoffBase, cfg.BackoffMax)
	}

	return cfg, nil
}
