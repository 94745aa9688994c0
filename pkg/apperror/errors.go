package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"-"` // true when the caller may safely retry as-is
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Input validation (VAL) ----

// Validation rejects malformed input before any store write.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Queue lifecycle (QUE) ----

// ErrNotFound signals that the referenced id does not exist.
func ErrNotFound(entity string) *AppError {
	return New("QUE_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrInvalidTransition signals a state change not legal from the current
// state. The caller's view is stale; this is never retried internally.
func ErrInvalidTransition(from, to string) *AppError {
	return New("QUE_002", fmt.Sprintf("invalid transition from %s to %s", from, to), http.StatusConflict)
}

// ErrConflict signals an optimistic-version race lost after retries.
// The caller may retry the whole operation.
func ErrConflict(err error) *AppError {
	e := Wrap("QUE_003", "concurrent modification, retry the operation", http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

// ErrVersionConflict is the single-attempt store-level conflict. The queue
// manager retries it internally before surfacing ErrConflict.
func ErrVersionConflict() *AppError {
	e := New("QUE_004", "stale version stamp", http.StatusConflict)
	e.Retryable = true
	return e
}

// ---- Operator auth (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrDatabaseError wraps a store failure.
func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_002", "Internal storage error", http.StatusInternalServerError, err)
}
