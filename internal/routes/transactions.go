package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/middleware"
	"github.com/congo-pay/swish/internal/payments"
)

// SetupTransactions wires the transaction service onto app.
func (s *Services) SetupTransactions(app *fiber.App) {
	s.use(app, "transactions")

	h := payments.NewHandler(s.Payments)
	txs := app.Group("/transactions", middleware.JWTAuth(s.Tokens))
	txs.Post("/transfer",
		middleware.Idempotency(s.deps.Cache, middleware.IdempotencyOptions{TTL: s.deps.Cfg.IdempotencyTTL}, s.deps.Logger),
		h.Transfer,
	)
	txs.Get("/user/:userId/recent", h.Recent)
	txs.Get("/between/:user1Id/:user2Id", h.Between)
	txs.Get("/stats/:userId", h.Stats)
	txs.Get("/:id", h.Get)
	txs.Put("/:id/cancel", h.Cancel)
}
