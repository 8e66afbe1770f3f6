package apperrors

import (
	"errors"
	"strings"
)

var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAccountNotFound   = errors.New("account not found")
	ErrIdentityLinked    = errors.New("external identity already linked to another account")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountDisabled    = errors.New("account is disabled")

	ErrNoTokenProvided  = errors.New("no token provided")
	ErrMalformedToken   = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenRevoked     = errors.New("token is revoked")

	ErrValidation = errors.New("validation failed")
)

// FieldError describes why a single input field was rejected
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every rejected field of one input.
// errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Return nil if there are no field errors, so the result may be returned as error directly
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
