package session

import (
	"context"
	"sync"
)

// Keys of the two persisted entries.
const (
	TokenKey    = "auth_token"
	IdentityKey = "user_data"
)

// Snapshot is the persisted session: the credential and the serialized
// identity. Stores treat both values as opaque strings and always write or
// clear them together.
type Snapshot struct {
	Token    string
	Identity string
}

// Empty reports whether nothing is stored.
func (s Snapshot) Empty() bool {
	return s.Token == "" && s.Identity == ""
}

// Complete reports whether both entries are present.
func (s Snapshot) Complete() bool {
	return s.Token != "" && s.Identity != ""
}

// Store persists the session snapshot across process restarts.
type Store interface {
	// Load returns whatever is stored; missing entries are empty strings.
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

type memoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemoryStore builds a process-local store for tests and ephemeral runs.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Load(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, nil
}

func (m *memoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return nil
}
