package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an API error: a stable code, the HTTP status it maps to and a
// client-facing message. Err holds the cause and is never serialised.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so errors.Is matches a
// clone or wrapped copy against the sentinel it came from.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New builds a sentinel.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Generic failures.
var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Registration failures.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "username or password is invalid")
	ErrSectionClosed      = New("SECTION_CLOSED", http.StatusForbidden, "class is no longer active")
	ErrRegistrationFailed = New("REGISTRATION_FAILED", http.StatusInternalServerError, "fail to register")
	ErrDropFailed         = New("DROP_FAILED", http.StatusInternalServerError, "fail to drop the class")
)

// ErrCacheMiss is returned by cache repositories and never reaches a client.
var ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")

// Clone copies kind, replacing its message when message is not empty.
func Clone(kind *Error, message string) *Error {
	if kind == nil {
		return nil
	}
	clone := *kind
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WrapAs clones kind with err as the cause.
func WrapAs(err error, kind *Error, message string) *Error {
	wrapped := Clone(kind, message)
	if wrapped != nil {
		wrapped.Err = err
	}
	return wrapped
}

// FromError returns the *Error in err's chain, or wraps err as ErrInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapAs(err, ErrInternal, "")
}
