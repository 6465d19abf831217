package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies editor passwords with bcrypt and an
// optional pepper appended to the password.
type PasswordHasher struct {
	cost   int
	pepper string
}

// NewPasswordHasher creates a hasher from the auth settings.
func NewPasswordHasher(c AuthConfig) (*PasswordHasher, error) {
	cost := c.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost + 2
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost out of range: %d", cost)
	}
	return &PasswordHasher{cost: cost, pepper: c.PasswordPepper}, nil
}

// Hash hashes a password.
func (h *PasswordHasher) Hash(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw+h.pepper), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether pw matches storedHash.
func (h *PasswordHasher) Verify(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pw+h.pepper)) == nil
}
