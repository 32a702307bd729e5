package payments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/validation"
	"github.com/congo-pay/swish/internal/wallet"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes transaction-service endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	SenderPhone   string        `json:"sender_phone"`
	ReceiverPhone string        `json:"receiver_phone"`
	Amount        remote.Amount `json:"amount"`
	Description   string        `json:"description"`
}

// Transfer processes a phone-to-phone transfer made by the caller.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderPhone:     req.SenderPhone,
		ReceiverPhone:   req.ReceiverPhone,
		Amount:          req.Amount.Decimal,
		Description:     req.Description,
		ClientTxID:      c.Get(idempotencyKeyHeader),
		RequestorUserID: uid,
	})
	if err != nil {
		return translate(err)
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// Recent serves GET /transactions/user/:userId/recent.
func (h *Handler) Recent(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if uid, _ := c.Locals("user_id").(string); uid != userID {
		return fiber.NewError(http.StatusForbidden, "cannot read another user's transactions")
	}
	txs, err := h.service.Recent(c.UserContext(), userID, queryInt(c, "limit"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(remote.RecentResponse{Transactions: txs, Count: len(txs), UserID: userID})
}

// Between serves GET /transactions/between/:user1Id/:user2Id. The caller must
// be one of the two users.
func (h *Handler) Between(c *fiber.Ctx) error {
	user1, user2 := c.Params("user1Id"), c.Params("user2Id")
	uid, _ := c.Locals("user_id").(string)
	if uid != user1 && uid != user2 {
		return fiber.NewError(http.StatusForbidden, "cannot read other users' transactions")
	}
	txs, err := h.service.Between(c.UserContext(), user1, user2, queryInt(c, "limit"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(remote.BetweenResponse{Transactions: txs, Count: len(txs), User1ID: user1, User2ID: user2})
}

// Get serves GET /transactions/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	tx, err := h.service.Get(c.UserContext(), c.Params("id"), uid)
	if err != nil {
		return translate(err)
	}
	return c.JSON(tx)
}

// Cancel serves PUT /transactions/:id/cancel.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	res, err := h.service.Cancel(c.UserContext(), c.Params("id"), uid)
	if err != nil {
		return translate(err)
	}
	return c.JSON(res)
}

// Stats serves GET /transactions/stats/:userId?days=N.
func (h *Handler) Stats(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if uid, _ := c.Locals("user_id").(string); uid != userID {
		return fiber.NewError(http.StatusForbidden, "cannot read another user's statistics")
	}
	stats, err := h.service.Stats(c.UserContext(), userID, queryInt(c, "days"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(stats)
}

func queryInt(c *fiber.Ctx, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func translate(err error) error {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return fiber.NewError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, "Cannot transfer to yourself")
	case errors.Is(err, ErrSenderNotFound):
		return fiber.NewError(http.StatusNotFound, "Sender not found")
	case errors.Is(err, ErrReceiverNotFound):
		return fiber.NewError(http.StatusNotFound, "Receiver not found")
	case errors.Is(err, wallet.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "Wallet not found")
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotParty):
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, "Transaction not found")
	case errors.Is(err, ledger.ErrNotCancellable):
		return fiber.NewError(http.StatusConflict, "Only pending transactions can be cancelled")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
