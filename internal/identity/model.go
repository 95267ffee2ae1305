package identity

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Account is an authentication record in the identity directory.
type Account struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
