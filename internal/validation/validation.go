// Package validation holds the client-side input rejection type. A
// validation failure is raised before any network call and must never be
// confused with a backend error.
package validation

import (
	"errors"
	"fmt"
)

// Error describes input rejected locally.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errorf builds an Error for a field.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a validation failure.
func Is(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
