package profile

import (
	"context"
	"strings"
	"sync"

	"github.com/courtchamps/courtchamps/internal/identity"
)

// Match selects how the memory repository locates an account's profile.
type Match int

const (
	// ByAccountID matches profiles on the account identifier.
	ByAccountID Match = iota
	// ByEmail matches the first profile whose email equals the account's.
	ByEmail
)

// MemoryRepository is an in-memory profile store for development and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	match    Match
	profiles []Profile
}

// NewMemoryRepository builds an in-memory profile store using the given matching strategy.
func NewMemoryRepository(match Match) *MemoryRepository {
	return &MemoryRepository{match: match}
}

func (r *MemoryRepository) Create(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, p)
	return nil
}

func (r *MemoryRepository) DeleteFor(_ context.Context, account identity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.profiles {
		if r.matches(p, account) {
			r.profiles = append(r.profiles[:i], r.profiles[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *MemoryRepository) matches(p Profile, account identity.Account) bool {
	if r.match == ByEmail {
		return strings.EqualFold(p.Email, account.Email)
	}
	return p.AccountID == account.ID
}

// Count returns how many stored profiles belong to the account.
func (r *MemoryRepository) Count(account identity.Account) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.profiles {
		if r.matches(p, account) {
			n++
		}
	}
	return n
}
