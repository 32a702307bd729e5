package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/identity"
	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/wallet"
)

// Handler exposes the login endpoint.
type Handler struct {
	ids     *identity.Service
	svc     *Service
	wallets *wallet.Service
	logger  *slog.Logger
}

// NewHandler builds a login handler. wallets may be nil, in which case the
// profile carries no balance.
func NewHandler(ids *identity.Service, svc *Service, wallets *wallet.Service, logger *slog.Logger) *Handler {
	return &Handler{ids: ids, svc: svc, wallets: wallets, logger: logger}
}

// Login validates credentials and returns a token with the caller's profile.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req remote.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.PhoneNumber == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "phoneNumber and password are required")
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.PhoneNumber, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "Invalid phone number or password")
		}
		return err
	}
	token, _, err := h.svc.Issue(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	var balance *float64
	if h.wallets != nil {
		if b, err := h.wallets.BalanceByOwner(c.UserContext(), user.ID); err == nil {
			amount := ledger.FromMinor(b.Amount).InexactFloat64()
			balance = &amount
		} else {
			h.logger.Warn("balance unavailable at login", slog.String("user_id", user.ID), "error", err)
		}
	}

	h.logger.Info("user logged in", slog.String("user_id", user.ID))
	return c.Status(http.StatusOK).JSON(remote.LoginResponse{Token: token, User: identity.Profile(user, balance)})
}
