// Package apperr defines the error kinds surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for translation into a response status.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindAuthentication   Kind = "AUTHENTICATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	KindInternal         Kind = "INTERNAL"
)

// Error is the application error type.
type Error struct {
	Kind    Kind   // Machine-readable classification
	Message string // User-facing message for 4xx kinds
	Cause   error  // Wrapped underlying error, never shown to clients
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Unauthenticated(message string) *Error {
	return New(KindAuthentication, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func StoreUnavailable(cause error) *Error {
	return Wrap(KindStoreUnavailable, "store unavailable", cause)
}

// KindOf returns the kind of err, or KindInternal for errors outside this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to send to a client.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && HTTPStatus(err) < http.StatusInternalServerError {
		return appErr.Message
	}
	return "Internal server error"
}
