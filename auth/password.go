package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"cityreport/apperrors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum length of a new password
	MinPasswordLength = 12
	// MaxPasswordBytes is the longest input bcrypt accepts
	MaxPasswordBytes = 72
	// MinSignInPasswordLength rejects obviously wrong passwords before hashing
	MinSignInPasswordLength = 8
	// DefaultBcryptCost is the cost factor for bcrypt hashing
	DefaultBcryptCost = 12
	// passwordSymbols are the accepted special characters
	passwordSymbols = "@$!%*?&"
)

// deniedSubstrings may not appear anywhere in a password, case-insensitively
var deniedSubstrings = []string{"password123", "admin123", "cityreport123"}

// Hasher hashes and verifies passwords with bcrypt
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. Out-of-range costs fall back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash hashes a password using bcrypt
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", tooLong()
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Compare checks a password against a hash. A mismatch yields ErrInvalidCredentials.
func (h *Hasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperrors.ErrInvalidCredentials
		}
		return fmt.Errorf("failed to check password: %w", err)
	}
	return nil
}

// ValidatePasswordStrength checks if a new password meets the security policy
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return tooLong()
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case char >= 'a' && char <= 'z':
			hasLower = true
		case char >= 'A' && char <= 'Z':
			hasUpper = true
		case char >= '0' && char <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, char):
			hasSymbol = true
		}
	}

	if !hasLower {
		return apperrors.NewValidationError("password", "must contain at least one lowercase letter")
	}
	if !hasUpper {
		return apperrors.NewValidationError("password", "must contain at least one uppercase letter")
	}
	if !hasDigit {
		return apperrors.NewValidationError("password", "must contain at least one digit")
	}
	if !hasSymbol {
		return apperrors.NewValidationError("password", "must contain at least one of "+passwordSymbols)
	}

	lower := strings.ToLower(password)
	for _, denied := range deniedSubstrings {
		if strings.Contains(lower, denied) {
			return apperrors.NewValidationError("password", "is too common")
		}
	}

	return nil
}

func tooLong() error {
	return apperrors.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
}
