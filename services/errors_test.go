package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorError(t *testing.T) {
	err := NewDomainError(ErrorTypeExternal, "search call failed", errors.New("dial tcp: timeout"))
	assert.Contains(t, err.Error(), "external")
	assert.Contains(t, err.Error(), "search call failed")
	assert.Contains(t, err.Error(), "dial tcp: timeout")

	bare := NewDomainError(ErrorTypeNotFound, "blob not found", nil)
	assert.Equal(t, "not_found: blob not found", bare.Error())
}

func TestDomainErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("boom")
	err := NewDomainError(ErrorTypeInternal, "wrapped", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.False(t, errors.Is(err, ErrBlobNotFound))

	// wrapping with fmt preserves type detection
	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, IsInternalError(wrapped))
}

func TestTypeCheckers(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{ErrBlobNotFound, IsNotFoundError},
		{ErrInvalidInput, IsValidationError},
		{ErrUnauthorized, IsUnauthorizedError},
		{ErrRateLimitExceeded, IsRateLimitError},
		{ErrOpenAIUnavailable, IsExternalError},
		{ErrDatabaseError, IsInternalError},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), "%v", tt.err)
	}

	assert.False(t, IsNotFoundError(errors.New("plain")))
	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("plain")))
}

func TestNewExternal(t *testing.T) {
	err := NewExternal("search", "upstream returned 503", 503, errors.New("service busy"))
	require.True(t, IsExternalError(err))

	details := GetErrorDetails(err)
	assert.Equal(t, "search", details["service"])
	assert.Equal(t, 503, details["status_code"])
}

func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "bad chunk size", nil).
		WithDetail("chunk_size", -1)
	assert.Equal(t, -1, GetErrorDetails(err)["chunk_size"])
}
