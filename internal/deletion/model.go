package deletion

import (
	"strings"
	"time"
)

// Token authorizes the deletion of the account registered under Email.
type Token struct {
	Email      string
	SecretHash string
	ExpiresAt  time.Time
}

// Expired reports whether the token is no longer valid at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Matches reports whether the token authorizes secretHash at now.
func (t Token) Matches(secretHash string, now time.Time) bool {
	return t.SecretHash == secretHash && !t.Expired(now)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestResult is the outcome of a deletion request. SecureToken is only set
// for the direct confirmation channel.
type RequestResult struct {
	SecureToken string
	Message     string
}
