package account

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

// NewMemoryRepository builds an in-memory account store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Account), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, acc Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[acc.Email]; exists {
		return ErrAlreadyExists
	}
	r.byID[acc.ID] = acc
	r.byEmail[acc.Email] = acc.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *memoryRepository) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.IsVerified = true
	r.byID[id] = acc
	return nil
}
