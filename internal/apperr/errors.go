// Package apperr is the domain error type shared by services, middleware and
// the HTTP error handler. Each error carries a Kind that decides its status
// code and a message that is safe to show to clients.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthorized
	NotFound
	Conflict
	InvalidID
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation, InvalidID:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidID:
		return "invalid_id"
	default:
		return "internal"
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Message string // client-facing
	Cause   error  // for logs only
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
