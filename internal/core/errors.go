package core

import (
	"errors"
	"fmt"
)

// ErrEmailTaken is returned when signing up with an email that already has an account.
var ErrEmailTaken = errors.New("Operational email already registered.")

// ErrInvalidCredentials is returned when login fails for any reason.
var ErrInvalidCredentials = errors.New("Credentials not verified or account not found.")

// ErrNotFound is returned when a record is missing or belongs to another user.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrReferenced is returned when deleting a record that others still point to.
type ErrReferenced struct {
	Entity EntityType
	ID     string
	By     EntityType
}

func (e ErrReferenced) Error() string {
	return fmt.Sprintf("%s %s is still referenced by a %s", e.Entity, e.ID, e.By)
}
