package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrInvalidPassword)

	assert.True(t, errors.Is(wrapped, ErrInvalidPassword))
	assert.False(t, errors.Is(wrapped, ErrUserNotFound))

	copyWithCause := &DomainError{Code: "INVALID_TOKEN", Message: "x", Err: errors.New("expired")}
	assert.True(t, errors.Is(copyWithCause, ErrInvalidToken))
}

func TestNewTransient(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransient(cause)

	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(fmt.Errorf("refresh: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTransient(ErrInvalidToken))
	assert.False(t, IsTransient(cause))

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusServiceUnavailable, de.HTTPStatus)
}

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("domain error passes through", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("wrap: %w", ErrRateLimited))
		assert.Equal(t, http.StatusTooManyRequests, de.HTTPStatus)
		assert.Equal(t, "RATE_LIMITED", de.Code)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		de := ToDomainError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.Equal(t, "internal server error", de.Message)
	})
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("token is expired")
	err := ErrInvalidToken.WithCause(cause)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, ErrInvalidToken.Err, "sentinel must not be mutated")
}
