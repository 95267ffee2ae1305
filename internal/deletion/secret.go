package deletion

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// secretBytes is the entropy of a confirmation secret (128 bits).
const secretBytes = 16

// SecretLength is the length of a rendered secret in hex characters.
const SecretLength = secretBytes * 2

// NewSecret returns a fresh random secret rendered as lowercase hex.
func NewSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the digest under which a secret is stored. Stores only
// ever see digests, so comparing digests is comparing secrets.
func HashSecret(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
