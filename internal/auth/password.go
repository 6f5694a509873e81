// Package auth provides password hashing, session token issuance, and the
// HTTP middleware that ties them to requests.
//
// WHY BCRYPT?
// Passwords are never stored or compared in plain text. bcrypt is slow on
// purpose, generates its own salt, and embeds salt and cost in the output
// string, so the hash column is self-contained and a leaked database is
// expensive to brute-force. A fast hash (SHA-256 and friends) would be
// crackable at GPU speed.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 lands around a quarter of
// a second per hash on current hardware — negligible for a login, brutal
// for an attacker iterating a wordlist.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification. It is a struct
// rather than free functions so tests can inject a low cost and avoid
// paying ~250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom (low)
// cost. Never use it outside tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password. The result is stored directly in the
// password column; Verify knows how to decode it.
//
// bcrypt silently truncates input beyond 72 bytes, so we reject longer
// passwords instead of surprising the caller.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored hash. Returns nil on
// a match. The comparison is constant-time, so response timing does not
// reveal how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
