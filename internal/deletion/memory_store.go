package deletion

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.Mutex
	tokens map[string]Token
}

// NewMemoryStore builds an in-memory token store for development and tests.
func NewMemoryStore() TokenStore {
	return &memoryStore{tokens: make(map[string]Token)}
}

func (s *memoryStore) Put(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Email] = token
	return nil
}

func (s *memoryStore) Get(_ context.Context, email string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[email]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	return token, nil
}

func (s *memoryStore) Consume(_ context.Context, email, secretHash string, now time.Time) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[email]
	if !ok || !token.Matches(secretHash, now) {
		return Token{}, errInvalidToken
	}
	delete(s.tokens, email)
	return token, nil
}

func (s *memoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for email, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, email)
			n++
		}
	}
	return n, nil
}
