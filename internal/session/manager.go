// Package session owns the authentication lifecycle of the client: login,
// registration, logout, the persisted identity snapshot and balance refresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/transport"
	"github.com/congo-pay/swish/internal/validation"
)

var (
	// ErrLoginFailed is returned when login fails without a remote reason.
	ErrLoginFailed = errors.New("login failed")
	// ErrRegistrationFailed is returned when registration fails without a remote reason.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrVerificationFailed is returned when verification fails without a remote reason.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrNotAuthenticated is returned by operations that cannot no-op without an identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCorruptSnapshot marks a persisted snapshot that could not be decoded.
	ErrCorruptSnapshot = errors.New("corrupt session snapshot")
)

// UserService is the subset of the user service the session depends on.
type UserService interface {
	Login(ctx context.Context, req remote.LoginRequest) (remote.LoginResponse, error)
	Register(ctx context.Context, req remote.RegisterRequest) (remote.RegisterResponse, error)
	Balance(ctx context.Context, userID string) (remote.BalanceResponse, error)
	Verify(ctx context.Context, userID, code string) (remote.MessageResponse, error)
}

// RegisterInput captures the fields of a new account.
type RegisterInput struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
}

type loginInput struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	Password    string `json:"password" validate:"required"`
}

// Patch lists identity fields to merge; nil fields are left untouched.
type Patch struct {
	FirstName  *string
	LastName   *string
	Email      *string
	IsVerified *bool
	Balance    *float64
	Currency   *string
}

func (p Patch) apply(id Identity) Identity {
	if p.FirstName != nil {
		id.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		id.LastName = *p.LastName
	}
	if p.Email != nil {
		id.Email = *p.Email
	}
	if p.IsVerified != nil {
		id.IsVerified = *p.IsVerified
	}
	if p.Balance != nil {
		id.Balance = *p.Balance
	}
	if p.Currency != nil {
		id.Currency = *p.Currency
	}
	return id
}

// Manager is the only writer of a Slot. Network calls never happen while the
// write lock is held; each mutation persists and then replaces the slot in one
// step.
type Manager struct {
	slot      *Slot
	users     UserService
	store     Store
	validator *validation.Validator
	logger    *slog.Logger

	writeMu     sync.Mutex
	restoreOnce sync.Once
}

// NewManager wires a session manager around slot.
func NewManager(slot *Slot, users UserService, store Store, logger *slog.Logger) *Manager {
	return &Manager{
		slot:      slot,
		users:     users,
		store:     store,
		validator: validation.New(),
		logger:    logger,
	}
}

// Slot exposes the read side of the session.
func (m *Manager) Slot() *Slot {
	return m.slot
}

// Identity returns the current identity, if any.
func (m *Manager) Identity() (Identity, bool) {
	return m.slot.Identity()
}

// Restore hydrates the slot from the persisted snapshot. It runs once per
// Manager; a missing, half-written or undecodable snapshot is cleared and the
// session stays unauthenticated. The slot is marked ready in every case.
func (m *Manager) Restore(ctx context.Context) {
	m.restoreOnce.Do(func() {
		defer m.slot.markReady()

		snap, err := m.store.Load(ctx)
		if err != nil {
			m.logger.Warn("session restore failed", "error", err)
			return
		}
		if snap.Empty() {
			return
		}

		identity, err := decodeSnapshot(snap)
		if err != nil {
			m.logger.Warn("discarding persisted session", "error", err)
			m.writeMu.Lock()
			defer m.writeMu.Unlock()
			if err := m.store.Clear(ctx); err != nil {
				m.logger.Error("clear corrupt session", "error", err)
			}
			m.slot.replace(nil, "")
			return
		}

		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		m.slot.replace(&identity, snap.Token)
		m.logger.Debug("session restored", slog.String("user_id", identity.ID))
	})
}

// Login authenticates with phone and password. On success the identity and
// token are persisted together and the session becomes Authenticated. On
// failure the session falls back to what it held before and the remote
// reason is returned.
func (m *Manager) Login(ctx context.Context, phone, password string) error {
	in := loginInput{PhoneNumber: validation.NormalizePhone(phone), Password: password}
	if err := m.validator.Struct(in); err != nil {
		return err
	}

	m.slot.setState(Authenticating)

	resp, err := m.users.Login(ctx, remote.LoginRequest{PhoneNumber: in.PhoneNumber, Password: in.Password})
	if err == nil && (resp.Token == "" || resp.User.ID == "") {
		err = fmt.Errorf("%w: response is missing token or user", ErrLoginFailed)
	}
	if err != nil {
		m.settleState()
		m.logger.Info("login failed", slog.String("phone", in.PhoneNumber), "error", err)
		return transport.Reason(err, ErrLoginFailed)
	}

	identity := identityFromUser(resp.User)
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.persist(ctx, &identity, resp.Token); err != nil {
		m.settleStateLocked()
		return err
	}
	m.slot.replace(&identity, resp.Token)
	m.logger.Info("login succeeded", slog.String("user_id", identity.ID))
	return nil
}

// Register creates an account. It never authenticates; the caller logs in
// afterwards.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (remote.RegisterResponse, error) {
	in.PhoneNumber = validation.NormalizePhone(in.PhoneNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if err := m.validator.Struct(in); err != nil {
		return remote.RegisterResponse{}, err
	}

	resp, err := m.users.Register(ctx, remote.RegisterRequest{
		PhoneNumber: in.PhoneNumber,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Password:    in.Password,
	})
	if err != nil {
		return remote.RegisterResponse{}, transport.Reason(err, ErrRegistrationFailed)
	}
	m.logger.Info("registration succeeded", slog.String("user_id", resp.UserID))
	return resp, nil
}

// Logout clears token and identity. Calling it while logged out is harmless.
// The slot is cleared only once the store no longer holds a session; a store
// that cannot clear is overwritten with an empty snapshot instead.
func (m *Manager) Logout(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clear session", "error", err)
		if saveErr := m.store.Save(ctx, Snapshot{}); saveErr != nil {
			m.logger.Error("overwrite session", "error", saveErr)
			return errors.Join(err, saveErr)
		}
	}
	m.slot.replace(nil, "")
	return nil
}

// UpdateIdentity merges patch into the current identity and re-persists it.
// Without an identity it does nothing.
func (m *Manager) UpdateIdentity(ctx context.Context, patch Patch) error {
	return m.update(ctx, "", patch)
}

// RefreshBalance fetches the latest balance of the current identity and
// applies it. Without an identity it does nothing. The fetch error is returned
// so callers can report a failed reconciliation.
func (m *Manager) RefreshBalance(ctx context.Context) error {
	identity, ok := m.slot.Identity()
	if !ok {
		return nil
	}
	resp, err := m.users.Balance(ctx, identity.ID)
	if err != nil {
		m.logger.Warn("refresh balance failed", slog.String("user_id", identity.ID), "error", err)
		return fmt.Errorf("refresh balance: %w", err)
	}
	patch := Patch{Balance: &resp.Balance}
	if resp.Currency != "" {
		patch.Currency = &resp.Currency
	}
	return m.update(ctx, identity.ID, patch)
}

// Verify submits a verification code for the current identity and marks it
// verified on success.
func (m *Manager) Verify(ctx context.Context, code string) error {
	identity, ok := m.slot.Identity()
	if !ok {
		return ErrNotAuthenticated
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return validation.Field("verificationCode", "is required")
	}
	if _, err := m.users.Verify(ctx, identity.ID, code); err != nil {
		return transport.Reason(err, ErrVerificationFailed)
	}
	verified := true
	return m.update(ctx, identity.ID, Patch{IsVerified: &verified})
}

// update applies patch under the write lock. A non-empty expectedID skips the
// update when the session changed hands while the caller was fetching.
func (m *Manager) update(ctx context.Context, expectedID string, patch Patch) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	current, token := m.slot.snapshot()
	if current == nil {
		return nil
	}
	if expectedID != "" && current.ID != expectedID {
		m.logger.Debug("dropping identity update for stale session", slog.String("user_id", expectedID))
		return nil
	}
	next := patch.apply(*current)
	if err := m.persist(ctx, &next, token); err != nil {
		return err
	}
	m.slot.replace(&next, token)
	return nil
}

func (m *Manager) persist(ctx context.Context, identity *Identity, token string) error {
	encoded, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := m.store.Save(ctx, Snapshot{Token: token, Identity: string(encoded)}); err != nil {
		m.logger.Error("persist session", "error", err)
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// settleState ends an Authenticating phase: the state follows whatever the
// slot holds.
func (m *Manager) settleState() {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.settleStateLocked()
}

func (m *Manager) settleStateLocked() {
	if m.slot.Authenticated() {
		m.slot.setState(Authenticated)
		return
	}
	m.slot.setState(Unauthenticated)
}

func decodeSnapshot(snap Snapshot) (Identity, error) {
	if !snap.Complete() {
		return Identity{}, fmt.Errorf("%w: token and identity must both be present", ErrCorruptSnapshot)
	}
	var identity Identity
	if err := json.Unmarshal([]byte(snap.Identity), &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if identity.ID == "" {
		return Identity{}, fmt.Errorf("%w: identity has no id", ErrCorruptSnapshot)
	}
	return identity, nil
}

func identityFromUser(u remote.User) Identity {
	identity := Identity{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		IsVerified:  u.IsVerified,
	}
	if u.Balance != nil {
		identity.Balance = *u.Balance
	}
	return identity
}
