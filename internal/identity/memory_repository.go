package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	users    map[string]User
	byPhone  map[string]string
	contacts map[string][]Contact
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:    make(map[string]User),
		byPhone:  make(map[string]string),
		contacts: make(map[string][]Contact),
	}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[user.PhoneNumber]; exists {
		return ErrUserExists
	}
	r.users[user.ID] = user
	r.byPhone[user.PhoneNumber] = user.ID
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.IsVerified = true
	r.users[id] = user
	return nil
}

func (r *memoryRepository) AddContact(_ context.Context, contact Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.contacts[contact.OwnerID] {
		if existing.ContactID == contact.ContactID {
			return ErrContactExists
		}
	}
	r.contacts[contact.OwnerID] = append(r.contacts[contact.OwnerID], contact)
	return nil
}

func (r *memoryRepository) ListContacts(_ context.Context, ownerID string) ([]Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Contact, len(r.contacts[ownerID]))
	copy(out, r.contacts[ownerID])
	return out, nil
}
