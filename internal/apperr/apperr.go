// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for status mapping.
type Kind string

const (
	Validation         Kind = "validation"
	InvalidCredentials Kind = "invalid_credentials"
	AccountDisabled    Kind = "account_disabled"
	Unauthenticated    Kind = "unauthenticated"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	InsufficientStock  Kind = "insufficient_stock"
	Busy               Kind = "busy"
	Internal           Kind = "internal"
)

// SystemErrorMessage is what clients see for internal failures.
const SystemErrorMessage = "internal server error"

var statusByKind = map[Kind]int{
	Validation:         http.StatusBadRequest,
	InvalidCredentials: http.StatusUnauthorized,
	AccountDisabled:    http.StatusUnauthorized,
	Unauthenticated:    http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	Conflict:           http.StatusConflict,
	InsufficientStock:  http.StatusBadRequest,
	Busy:               http.StatusConflict,
	Internal:           http.StatusInternalServerError,
}

// Error wraps an underlying error with a kind, a client-safe message and
// optional per-field messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithField attaches a field message and returns the same error.
func (e *Error) WithField(field, msg string) *Error {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
	return e
}

// New creates an Error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error around err.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Fields builds a validation error from a field map. It returns nil when the
// map is empty so callers can collect problems and return unconditionally.
func Fields(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Kind: Validation, Message: "invalid input", Fields: fields}
}

// NotEnoughStock reports that only available units remain.
func NotEnoughStock(available int) *Error {
	return New(InsufficientStock, fmt.Sprintf("Only %d items left", available)).
		WithField("quantity", fmt.Sprintf("Not enough stock available. Only %d items left.", available))
}

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// FieldsOf returns the field messages carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	if s, ok := statusByKind[KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may safely retry the operation.
func Retryable(err error) bool {
	return Is(err, Busy)
}
