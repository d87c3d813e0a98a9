package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the service has always used for new hashes.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies user passwords with bcrypt.
//
// The bcrypt output embeds the algorithm version and the cost, so raising the
// configured cost never invalidates hashes created with an older cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost for new hashes. A zero or
// negative cost selects DefaultBcryptCost; other values are clamped to the
// range bcrypt accepts.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost <= 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the cost used for new hashes.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. A malformed hash is a mismatch.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost than the
// one currently configured, or cannot be parsed at all.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}
