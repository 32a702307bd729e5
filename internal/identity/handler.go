package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/validation"
)

const contactActivityLimit = 3

// ProvisionFunc sets up everything a freshly registered user needs beyond the
// identity record, such as a funded wallet.
type ProvisionFunc func(ctx context.Context, userID string) error

// Activity lists transfers in their wire shape.
type Activity interface {
	Between(ctx context.Context, userID, otherID string, limit int) ([]remote.RawTransaction, error)
}

// Handler exposes identity endpoints.
type Handler struct {
	service   *Service
	provision ProvisionFunc
	activity  Activity
	logger    *slog.Logger
}

// NewHandler constructs an identity HTTP handler. provision and activity may
// be nil.
func NewHandler(service *Service, provision ProvisionFunc, activity Activity, logger *slog.Logger) *Handler {
	return &Handler{service: service, provision: provision, activity: activity, logger: logger}
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Register(c.UserContext(), req)
	if err != nil {
		return translate(err)
	}
	if h.provision != nil {
		if err := h.provision(c.UserContext(), user.ID); err != nil {
			logging.FromContext(c.UserContext(), h.logger).Error("provision user failed", slog.String("user_id", user.ID), "error", err)
			return fiber.NewError(http.StatusInternalServerError, "could not provision account")
		}
	}
	logging.FromContext(c.UserContext(), h.logger).Info("user registered", slog.String("user_id", user.ID))
	return c.Status(http.StatusCreated).JSON(remote.RegisterResponse{
		Message:     "User registered successfully",
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
	})
}

type verifyRequest struct {
	VerificationCode string `json:"verificationCode"`
}

// Verify marks the caller's account verified.
func (h *Handler) Verify(c *fiber.Ctx) error {
	userID, err := ownPath(c)
	if err != nil {
		return err
	}
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.service.Verify(c.UserContext(), userID, req.VerificationCode); err != nil {
		return translate(err)
	}
	return c.JSON(remote.MessageResponse{Message: "User verified successfully"})
}

type addContactRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Nickname    string `json:"nickname"`
}

// AddContact stores a counterparty for the caller.
func (h *Handler) AddContact(c *fiber.Ctx) error {
	userID, err := ownPath(c)
	if err != nil {
		return err
	}
	var req addContactRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	added, err := h.service.AddContact(c.UserContext(), userID, req.PhoneNumber, req.Nickname)
	if err != nil {
		return translate(err)
	}
	return c.Status(http.StatusCreated).JSON(remote.AddContactResponse{
		Message: "Contact added successfully",
		Contact: rawContact(added, nil),
	})
}

// Contacts lists the caller's contacts with their latest shared transfers.
func (h *Handler) Contacts(c *fiber.Ctx) error {
	userID, err := ownPath(c)
	if err != nil {
		return err
	}
	list, err := h.service.Contacts(c.UserContext(), userID)
	if err != nil {
		return translate(err)
	}
	out := remote.ContactsResponse{Contacts: make([]remote.RawContact, 0, len(list))}
	for _, entry := range list {
		var recent []remote.RawTransaction
		if h.activity != nil {
			recent, err = h.activity.Between(c.UserContext(), userID, entry.User.ID, contactActivityLimit)
			if err != nil {
				logging.FromContext(c.UserContext(), h.logger).Warn("contact activity unavailable", slog.String("user_id", userID), "error", err)
				recent = nil
			}
		}
		out.Contacts = append(out.Contacts, rawContact(entry, recent))
	}
	return c.JSON(out)
}

type validateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	UserID      string `json:"userId"`
}

// Validate reports whether a phone number or user id belongs to an account.
// Unknown accounts are a successful response with valid=false.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Validate(c.UserContext(), req.PhoneNumber, req.UserID)
	switch {
	case err == nil:
		profile := Profile(user, nil)
		return c.JSON(remote.ValidateResponse{Valid: true, User: &profile})
	case errors.Is(err, ErrUserNotFound):
		return c.JSON(remote.ValidateResponse{Valid: false, Error: "User not found"})
	default:
		return translate(err)
	}
}

// Lookup returns the profile registered to a phone number together with the
// transfers the caller exchanged with that user.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	user, err := h.service.FindByPhone(c.UserContext(), c.Params("phoneNumber"))
	if err != nil {
		return translate(err)
	}
	recent := []remote.RawTransaction{}
	if h.activity != nil && callerID != "" {
		if recent, err = h.activity.Between(c.UserContext(), callerID, user.ID, contactActivityLimit); err != nil {
			return err
		}
	}
	profile := Profile(user, nil)
	profile.Email = ""
	return c.JSON(remote.LookupResponse{User: profile, RecentTransactions: recent})
}

// Profile renders user in the user-service wire shape.
func Profile(user User, balance *float64) remote.User {
	return remote.User{
		ID:          user.ID,
		PhoneNumber: user.PhoneNumber,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		IsVerified:  user.IsVerified,
		Balance:     balance,
	}
}

func rawContact(entry ContactUser, recent []remote.RawTransaction) remote.RawContact {
	nickname := entry.Nickname
	if nickname == "" {
		nickname = entry.User.DisplayName()
	}
	return remote.RawContact{
		ID:                 entry.User.ID,
		Nickname:           nickname,
		PhoneNumber:        entry.User.PhoneNumber,
		RecentTransactions: recent,
	}
}

func ownPath(c *fiber.Ctx) (string, error) {
	userID := c.Params("userId")
	if uid, _ := c.Locals("user_id").(string); uid == "" || uid != userID {
		return "", fiber.NewError(http.StatusForbidden, "forbidden")
	}
	return userID, nil
}

func translate(err error) error {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return fiber.NewError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrUserExists):
		return fiber.NewError(http.StatusConflict, "User already exists")
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrInvalidCode):
		return fiber.NewError(http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, ErrContactExists):
		return fiber.NewError(http.StatusConflict, "Contact already exists")
	case errors.Is(err, ErrSelfContact):
		return fiber.NewError(http.StatusBadRequest, "Cannot add yourself as a contact")
	default:
		return err
	}
}
