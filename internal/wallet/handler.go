package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/remote"
)

// Handler serves balance reads.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UserBalance serves GET /users/:userId/balance. Callers may only read their
// own balance.
func (h *Handler) UserBalance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if uid, _ := c.Locals("user_id").(string); uid != userID {
		return fiber.NewError(http.StatusForbidden, "cannot read another user's balance")
	}
	balance, err := h.service.BalanceByOwner(c.UserContext(), userID)
	if errors.Is(err, ErrWalletNotFound) {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(remote.BalanceResponse{
		UserID:   userID,
		Balance:  ledger.FromMinor(balance.Amount).InexactFloat64(),
		Currency: balance.Currency,
	})
}
