package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"

	defaultSessionDir  = ".swish"
	defaultSessionFile = "session.db"
)

// Config captures client runtime configuration loaded from environment variables.
type Config struct {
	LogLevel              string        `env:"LOG_LEVEL" envDefault:"warn"`
	UserServiceURL        string        `env:"SWISH_USER_SERVICE_URL" envDefault:"http://localhost:3002"`
	TransactionServiceURL string        `env:"SWISH_TRANSACTION_SERVICE_URL" envDefault:"http://localhost:3003"`
	RequestTimeout        time.Duration `env:"SWISH_REQUEST_TIMEOUT" envDefault:"30s"`
	SessionStore          string        `env:"SWISH_SESSION_STORE" envDefault:"sqlite"`
	SessionPath           string        `env:"SWISH_SESSION_PATH"`
	RedisURL              string        `env:"SWISH_REDIS_URL"`
	RedisKeyPrefix        string        `env:"SWISH_REDIS_PREFIX" envDefault:"swish:"`
	HistoryLimit          int           `env:"SWISH_HISTORY_LIMIT" envDefault:"10"`
	StatsDays             int           `env:"SWISH_STATS_DAYS" envDefault:"30"`
}

// Load reads client configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	cfg.UserServiceURL = strings.TrimRight(cfg.UserServiceURL, "/")
	cfg.TransactionServiceURL = strings.TrimRight(cfg.TransactionServiceURL, "/")

	switch cfg.SessionStore {
	case StoreSQLite:
		if cfg.SessionPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return Config{}, fmt.Errorf("resolve home directory: %w", err)
			}
			cfg.SessionPath = filepath.Join(home, defaultSessionDir, defaultSessionFile)
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("SWISH_REDIS_URL must be set when SWISH_SESSION_STORE=redis")
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("invalid SWISH_SESSION_STORE %q", cfg.SessionStore)
	}

	if cfg.RequestTimeout < 0 {
		return Config{}, fmt.Errorf("invalid SWISH_REQUEST_TIMEOUT: must not be negative")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("invalid SWISH_HISTORY_LIMIT: must be positive")
	}
	if cfg.StatsDays <= 0 {
		return Config{}, fmt.Errorf("invalid SWISH_STATS_DAYS: must be positive")
	}

	return cfg, nil
}
