// Package errors defines the typed error contract shared by services,
// handlers and the response envelope. Every error that crosses a package
// boundary is an *Error carrying a stable code and an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed domain error. Code is stable across releases and is
// what clients should branch on; Status drives the HTTP response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error from its parts.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error keeping err reachable through Unwrap.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Common errors shared by every module.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Grading and analytics errors.
var (
	ErrDuplicateKey         = New("DUPLICATE_KEY", http.StatusConflict, "natural key already in use")
	ErrUnresolvedIdentity   = New("UNRESOLVED_IDENTITY", http.StatusUnprocessableEntity, "answer sheet cannot be bound to a known student")
	ErrNeedsArbitration     = New("NEEDS_ARBITRATION", http.StatusConflict, "reviewer scores disagree beyond tolerance")
	ErrInvalidScore         = New("INVALID_SCORE", http.StatusBadRequest, "score outside the allowed range")
	ErrInconsistentSnapshot = New("INCONSISTENT_SNAPSHOT", http.StatusConflict, "cohort snapshot is internally inconsistent")
)

// FromError coerces any error into an *Error, defaulting to ErrInternal
// so unexpected failures never leak raw messages to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, optionally overriding the message. Used when a shared
// sentinel needs request-specific wording without mutating the sentinel.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target. Codes, not
// pointer identity, define equality so cloned errors still match.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
