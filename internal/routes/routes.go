package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/swish/internal/auth"
	"github.com/congo-pay/swish/internal/config"
	"github.com/congo-pay/swish/internal/identity"
	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/middleware"
	"github.com/congo-pay/swish/internal/notification"
	"github.com/congo-pay/swish/internal/payments"
	"github.com/congo-pay/swish/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.SandboxConfig
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Registry collects HTTP metrics; nil disables them.
	Registry *prometheus.Registry
}

// Services is the dependency graph shared by the user and transaction apps.
type Services struct {
	Identity *identity.Service
	Wallets  *wallet.Service
	Payments *payments.Service
	Tokens   *auth.Service

	deps    Deps
	metrics *middleware.HTTPMetrics
}

// Build wires repositories and services, choosing Postgres when a pool is
// configured and in-memory storage otherwise.
func Build(ctx context.Context, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	var (
		ledgerBackend ledger.Ledger
		walletRepo    wallet.Repository
		identityRepo  identity.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.TreasuryAccountCode); err != nil {
		return nil, fmt.Errorf("ensure treasury account: %w", err)
	}

	pendingAbove, err := d.Cfg.PendingAboveAmount()
	if err != nil {
		return nil, err
	}
	var pendingMinor int64
	if pendingAbove.IsPositive() {
		if pendingMinor, err = ledger.ToMinor(pendingAbove); err != nil {
			return nil, fmt.Errorf("pending threshold: %w", err)
		}
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(d.Cache, "")}
	}

	s := &Services{
		Identity: identity.NewService(identityRepo, d.Cfg.VerificationCode),
		Wallets:  wallet.NewService(walletRepo, ledgerBackend, d.Cfg.Currency),
		Tokens:   auth.NewService(d.Cfg.JWTSecret, d.Cfg.AppName, d.Cfg.AccessTokenTTL),
		deps:     d,
	}
	s.Payments = payments.NewService(ledgerBackend, s.Wallets, s.Identity, notifier, pendingMinor, d.Logger)
	if d.Registry != nil {
		s.metrics = middleware.NewHTTPMetrics(d.Registry)
	}
	return s, nil
}

// provisionWallet opens a wallet funded with the configured opening balance.
func (s *Services) provisionWallet(ctx context.Context, userID string) error {
	opening, err := s.deps.Cfg.OpeningBalanceAmount()
	if err != nil {
		return err
	}
	var minor int64
	if opening.IsPositive() {
		if minor, err = ledger.ToMinor(opening); err != nil {
			return err
		}
	}
	_, err = s.Wallets.Create(ctx, wallet.CreateInput{OwnerID: userID, OpeningBalance: minor})
	return err
}

// use installs the middleware shared by both apps.
func (s *Services) use(app *fiber.App, service string) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(s.deps.Logger.With(slog.String("service", service))))
	if s.metrics != nil {
		app.Use(s.metrics.Handler(service))
	}
	RegisterHealthRoutes(app, s.deps)
}
