package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account directory for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(account.Email)
	if _, exists := r.accounts[key]; exists {
		return errors.New("account exists")
	}
	r.accounts[key] = account
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, account := range r.accounts {
		if account.ID == id {
			delete(r.accounts, email)
			return nil
		}
	}
	return ErrNotFound
}
