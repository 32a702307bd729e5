package session

import (
	"strings"
	"sync"
)

// State is the authentication state of the process.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Identity is the authenticated user's locally held profile and balance
// snapshot. It is always stored as a whole value.
type Identity struct {
	ID          string  `json:"id"`
	PhoneNumber string  `json:"phoneNumber"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	IsVerified  bool    `json:"isVerified"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency,omitempty"`
}

// DisplayName joins first and last name.
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Slot is the single owned identity/token record of the process. Readers may
// use it from anywhere; only Manager writes to it, and every write replaces
// identity and token together.
type Slot struct {
	mu       sync.RWMutex
	state    State
	identity *Identity
	token    string
	ready    bool
}

// NewSlot returns an empty, not yet restored slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Token returns the current bearer credential, or "" when logged out.
func (s *Slot) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the current identity.
func (s *Slot) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// State returns the current authentication state.
func (s *Slot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether an identity is present.
func (s *Slot) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Ready reports whether the initial restore has completed.
func (s *Slot) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Slot) replace(identity *Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity == nil || token == "" {
		s.identity, s.token, s.state = nil, "", Unauthenticated
		return
	}
	copied := *identity
	s.identity, s.token, s.state = &copied, token, Authenticated
}

func (s *Slot) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Slot) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

func (s *Slot) snapshot() (*Identity, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, ""
	}
	copied := *s.identity
	return &copied, s.token
}
