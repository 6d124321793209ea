package credentials

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the policy floor for admin passwords.
	MinPasswordLength = 12

	specialCharacters = `!@#$%^&*()_+-=[]{};':"|,.<>/?`
)

// PolicyResult carries every violated rule, not just the first, so the
// dashboard can show the full checklist.
type PolicyResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Hasher hashes and verifies admin passwords and backup codes with bcrypt.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// ValidatePassword enforces the password policy and reports all violations.
func ValidatePassword(password string) PolicyResult {
	var errs []string

	if len(password) < MinPasswordLength {
		errs = append(errs, "password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialCharacters, r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain a digit")
	}
	if !hasSpecial {
		errs = append(errs, "password must contain a special character")
	}

	return PolicyResult{Valid: len(errs) == 0, Errors: errs}
}

// HashPassword produces a storable one-way hash.
func (h *Hasher) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares in constant time via bcrypt's own verification.
// Malformed hashes simply fail the check; this never panics or errors out to
// the caller.
func (h *Hasher) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
