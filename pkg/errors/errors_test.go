package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrInternal, ErrServiceUnavail,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("redis connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "redis connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "cart not found"}
	assert.Equal(t, "NOT_FOUND: cart not found", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Nil(t, (&AppError{Code: "TEST"}).Unwrap())
}

// --- Constructor functions ---

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("cart", "sess-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("bad key"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("session required"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"unavailable", Unavailable("storage down", nil), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.err)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.Status)
			assert.ErrorIs(t, tc.err, tc.sentinel)
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "cart with id sess-1 not found", NotFound("cart", "sess-1").Message)
}

func TestInternal_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
}

func TestUnavailable_WrapsCauseAndSentinel(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("cart storage unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrServiceUnavail)
}

// --- Wrap ---

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load cart")
	assert.Equal(t, "load cart: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- HTTPStatus ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("x"), http.StatusBadRequest},
		{"wrapped app error", fmt.Errorf("ctx: %w", Unauthorized("x")), http.StatusUnauthorized},
		{"not found sentinel", fmt.Errorf("ctx: %w", ErrNotFound), http.StatusNotFound},
		{"invalid input sentinel", ErrInvalidInput, http.StatusBadRequest},
		{"unauthorized sentinel", ErrUnauthorized, http.StatusUnauthorized},
		{"unavailable sentinel", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}
