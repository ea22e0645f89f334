package engine

import (
	"errors"

	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// ErrNotFound is returned when an entity does not exist or belongs to another user.
// It is the storage sentinel so errors.Is matches at either layer.
var ErrNotFound = storage.ErrNotFound

// ErrUnauthorized is returned when an operation is attempted without a user.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the message; the field is kept for the API response.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
