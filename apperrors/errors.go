// Package apperrors defines the error taxonomy shared by the repositories,
// the session layer and the auth gateway.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors - Authentication
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
)

// Sentinel errors - Data
var (
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input: email shape, password policy,
// a missing required field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthError is returned for bad credentials, locked accounts and
// expired or insufficient sessions. Message is human readable; Err is one
// of the authentication sentinels.
type AuthError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap implements the errors.Unwrap interface for error chaining.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an AuthError wrapping kind.
func NewAuthError(kind error, message string) *AuthError {
	return &AuthError{Message: message, Err: kind}
}

// IsAuth reports whether err is (or wraps) an *AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
