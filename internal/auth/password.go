package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const referencePassword = "imparables-timing-reference"

// PasswordHasher hashes and checks principal passwords with bcrypt. It keeps a
// reference hash so a lookup that finds no principal still pays for one
// comparison.
type PasswordHasher struct {
	cost      int
	reference []byte
}

// NewPasswordHasher builds a hasher. Costs outside bcrypt's range fall back
// to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	reference, err := bcrypt.GenerateFromPassword([]byte(referencePassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash reference password: %w", err)
	}
	return &PasswordHasher{cost: cost, reference: reference}, nil
}

// Cost reports the bcrypt cost used for new hashes.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Matches reports whether plain is the password behind hashed. A malformed
// hash never matches.
func (h *PasswordHasher) Matches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// Discard compares plain against the reference hash and ignores the result.
func (h *PasswordHasher) Discard(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.reference, []byte(plain))
}
