package ledger

import (
	"errors"

	"github.com/mcclellann/lendlog/pkg/store"
)

var (
	ErrNotFound       = store.ErrNotFound
	ErrValidation     = errors.New("validation failed")
	ErrInvalidState   = errors.New("invalid status transition")
	ErrContactInUse   = errors.New("contact has transactions")
	ErrUnauthorized   = errors.New("invalid credentials")
	ErrDuplicateEmail = errors.New("email already registered")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
