// Package apperr defines the error kinds surfaced by the scoring service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers. Kinds are stable and safe to expose.
type Kind string

const (
	// KindInvalidInput means the request was malformed; the client must fix it and resend.
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound means the exam, question or result set does not exist.
	KindNotFound Kind = "not_found"
	// KindExamExpired means the exam's submission window has closed.
	KindExamExpired Kind = "exam_expired"
	// KindServerError is an unexpected failure while resolving or scoring.
	KindServerError Kind = "server_error"
	// KindUnauthenticated means no verified caller identity is available.
	KindUnauthenticated Kind = "unauthenticated"
	// KindForbidden means the caller is authenticated but lacks the role.
	KindForbidden Kind = "forbidden"
)

// Error is an error with a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidInput is shorthand for New(KindInvalidInput, ...).
func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf returns the kind of err. Errors without a kind are server errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the message of err without the wrapped cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExamExpired:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
