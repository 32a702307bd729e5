package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// SandboxConfig captures runtime configuration of the local user and
// transaction services.
type SandboxConfig struct {
	AppName          string        `env:"APP_NAME" envDefault:"SwishSandbox"`
	Env              string        `env:"APP_ENV" envDefault:"development"`
	UsersPort        string        `env:"USERS_PORT" envDefault:"3002"`
	TransactionsPort string        `env:"TRANSACTIONS_PORT" envDefault:"3003"`
	MetricsPort      string        `env:"METRICS_PORT" envDefault:"9102"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	RedisURL         string        `env:"REDIS_URL"`
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"sandbox-secret"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	ShutdownPeriod   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	OpeningBalance   string        `env:"OPENING_BALANCE" envDefault:"1000.00"`
	PendingAbove     string        `env:"PENDING_ABOVE" envDefault:"10000.00"`
	Currency         string        `env:"CURRENCY" envDefault:"SEK"`
	LoginAttempts    int           `env:"LOGIN_ATTEMPTS_PER_MINUTE" envDefault:"5"`
	VerificationCode string        `env:"VERIFICATION_CODE" envDefault:"000000"`
}

// LoadSandbox reads sandbox configuration from the environment.
func LoadSandbox() (SandboxConfig, error) {
	var cfg SandboxConfig
	if err := env.Parse(&cfg); err != nil {
		return SandboxConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Currency = strings.ToUpper(cfg.Currency)

	if _, err := cfg.OpeningBalanceAmount(); err != nil {
		return SandboxConfig{}, fmt.Errorf("invalid OPENING_BALANCE: %w", err)
	}
	if _, err := cfg.PendingAboveAmount(); err != nil {
		return SandboxConfig{}, fmt.Errorf("invalid PENDING_ABOVE: %w", err)
	}
	if cfg.JWTSecret == "" {
		return SandboxConfig{}, fmt.Errorf("JWT_SECRET must be set")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return SandboxConfig{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return SandboxConfig{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
	}

	return cfg, nil
}

// OpeningBalanceAmount parses the balance seeded into freshly provisioned wallets.
func (c SandboxConfig) OpeningBalanceAmount() (decimal.Decimal, error) {
	return nonNegative(c.OpeningBalance)
}

func nonNegative(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return amount, nil
}

// PendingAboveAmount parses the amount above which transfers are held as
// pending. Zero disables holding.
func (c SandboxConfig) PendingAboveAmount() (decimal.Decimal, error) {
	return nonNegative(c.PendingAbove)
}

// IsDev reports whether the sandbox runs in a development environment where
// in-memory storage is acceptable.
func (c SandboxConfig) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// UsersAddress returns the user service listen address in the format Fiber expects.
func (c SandboxConfig) UsersAddress() string {
	return address(c.UsersPort)
}

// TransactionsAddress returns the transaction service listen address.
func (c SandboxConfig) TransactionsAddress() string {
	return address(c.TransactionsPort)
}

// MetricsAddress returns the Prometheus scrape endpoint address.
func (c SandboxConfig) MetricsAddress() string {
	return address(c.MetricsPort)
}

func address(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
