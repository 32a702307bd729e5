package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/swish/internal/config"
	"github.com/congo-pay/swish/internal/routes"
)

// Server wraps the user and transaction Fiber applications, which share one
// dependency graph.
type Server struct {
	users        *fiber.App
	transactions *fiber.App
	cfg          config.SandboxConfig
	logger       *slog.Logger
}

// New builds both applications and delegates route wiring to routes.
func New(ctx context.Context, d routes.Deps) (*Server, error) {
	services, err := routes.Build(ctx, d)
	if err != nil {
		return nil, err
	}

	users := newApp(d.Cfg.AppName+" users", d.Logger)
	services.SetupUsers(users)
	transactions := newApp(d.Cfg.AppName+" transactions", d.Logger)
	services.SetupTransactions(transactions)

	return &Server{users: users, transactions: transactions, cfg: d.Cfg, logger: d.Logger}, nil
}

func newApp(name string, logger *slog.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          ErrorHandler(logger),
	})
}

// ErrorHandler renders every error as {"error": message}. Unexpected errors
// are logged and reported without internal detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		message := "Internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", slog.String("path", c.Path()), "error", err)
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

// Users exposes the user service application.
func (s *Server) Users() *fiber.App { return s.users }

// Transactions exposes the transaction service application.
func (s *Server) Transactions() *fiber.App { return s.transactions }

// Listen serves both applications. When one of them fails the other is shut
// down, so Listen returns once neither is serving.
func (s *Server) Listen() error {
	var g errgroup.Group
	g.Go(func() error {
		s.logger.Info("user service listening", slog.String("addr", s.cfg.UsersAddress()))
		err := s.users.Listen(s.cfg.UsersAddress())
		if err != nil {
			_ = s.transactions.Shutdown()
		}
		return err
	})
	g.Go(func() error {
		s.logger.Info("transaction service listening", slog.String("addr", s.cfg.TransactionsAddress()))
		err := s.transactions.Listen(s.cfg.TransactionsAddress())
		if err != nil {
			_ = s.users.Shutdown()
		}
		return err
	})
	return g.Wait()
}

// Shutdown gracefully stops both applications.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.users.ShutdownWithContext(ctx),
		s.transactions.ShutdownWithContext(ctx),
	)
}
