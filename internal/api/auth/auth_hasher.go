package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost matches the work factor the accounts were originally created with.
const hashCost = 10

// HashPassword derives a salted one-way digest of the plaintext. Callers
// invoke this only when the password itself changes, never on unrelated
// saves.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// CheckPassword reports whether the plaintext matches the stored digest.
// bcrypt's comparison is constant-time with respect to the digest contents.
func CheckPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
