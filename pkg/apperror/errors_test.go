package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("QUE_001", "queue item not found", http.StatusNotFound),
			expected: "[QUE_001] queue item not found",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_002", "storage error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_002] storage error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("VAL_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestQueueErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
		retryable  bool
	}{
		{"NotFound", ErrNotFound("queue item"), "QUE_001", 404, false},
		{"InvalidTransition", ErrInvalidTransition("PENDING", "COMPLETED"), "QUE_002", 409, false},
		{"Conflict", ErrConflict(fmt.Errorf("lost race")), "QUE_003", 503, true},
		{"VersionConflict", ErrVersionConflict(), "QUE_004", 409, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := Validation("amount must be positive")
	assert.Equal(t, "VAL_001", err.Code)
	assert.Equal(t, 400, err.HTTPStatus)
	assert.Contains(t, err.Message, "amount")
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := ErrInvalidTransition("MATCHED", "COMPLETED")
	assert.Contains(t, err.Message, "MATCHED")
	assert.Contains(t, err.Message, "COMPLETED")
}

func TestAuthError(t *testing.T) {
	err := ErrInvalidToken()
	assert.Equal(t, "AUTH_001", err.Code)
	assert.Equal(t, 401, err.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_002", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	intErr := InternalError(inner)
	assert.Equal(t, "SYS_001", intErr.Code)
	assert.Equal(t, 500, intErr.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("match")
	assert.Contains(t, err.Message, "match")
	assert.Equal(t, "QUE_001", err.Code)
}
