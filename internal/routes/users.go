package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/auth"
	"github.com/congo-pay/swish/internal/identity"
	"github.com/congo-pay/swish/internal/middleware"
	"github.com/congo-pay/swish/internal/wallet"
)

// SetupUsers wires the user service onto app.
func (s *Services) SetupUsers(app *fiber.App) {
	s.use(app, "users")

	ids := identity.NewHandler(s.Identity, s.provisionWallet, s.Payments, s.deps.Logger)
	login := auth.NewHandler(s.Identity, s.Tokens, s.Wallets, s.deps.Logger)
	balances := wallet.NewHandler(s.Wallets)

	users := app.Group("/users")
	users.Post("/register", ids.Register)
	users.Post("/login", middleware.LoginRateLimit(s.deps.Cache, s.deps.Cfg.LoginAttempts, s.deps.Logger), login.Login)
	users.Post("/validate", ids.Validate)

	protected := users.Group("", middleware.JWTAuth(s.Tokens))
	protected.Get("/:userId/contacts", ids.Contacts)
	protected.Post("/:userId/contacts", ids.AddContact)
	protected.Get("/:userId/balance", balances.UserBalance)
	protected.Put("/:userId/verify", ids.Verify)
	protected.Get("/:phoneNumber", ids.Lookup)
}
