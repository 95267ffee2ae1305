package deletion

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned by TokenStore.Get when no token is stored.
var ErrTokenNotFound = errors.New("deletion token not found")

// TokenStore persists one deletion token per email.
type TokenStore interface {
	// Put stores the token, replacing any token held for the same email.
	Put(ctx context.Context, token Token) error
	// Get returns the stored token regardless of expiry.
	Get(ctx context.Context, email string) (Token, error)
	// Consume atomically removes the token for email if its digest equals
	// secretHash and it has not expired at now. Otherwise nothing changes and
	// the returned error matches InvalidOrExpiredToken.
	Consume(ctx context.Context, email, secretHash string, now time.Time) (Token, error)
}

// ExpiredPurger is implemented by token stores that need expired tokens
// removed explicitly.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
