package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e that wraps err. Sentinels stay untouched.
func (e *DomainError) WithCause(err error) *DomainError {
	clone := *e
	clone.Err = err
	return &clone
}

// Authentication failure kinds. Compare with errors.Is.
var (
	ErrUserNotFound        = NewDomainError("USER_NOT_FOUND", "Invalid email", http.StatusUnauthorized, nil)
	ErrEmailNotConfirmed   = NewDomainError("EMAIL_NOT_CONFIRMED", "Email not confirmed", http.StatusUnauthorized, nil)
	ErrInvalidPassword     = NewDomainError("INVALID_PASSWORD", "Invalid password", http.StatusUnauthorized, nil)
	ErrInvalidToken        = NewDomainError("INVALID_TOKEN", "Could not validate credentials", http.StatusUnauthorized, nil)
	ErrInvalidRefreshToken = NewDomainError("INVALID_REFRESH_TOKEN", "Invalid refresh token", http.StatusUnauthorized, nil)
	ErrVerification        = NewDomainError("VERIFICATION_ERROR", "Verification error", http.StatusBadRequest, nil)
	ErrRateLimited         = NewDomainError("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests, nil)
	ErrEmailTaken          = NewDomainError("CONFLICT", "Account already exists", http.StatusConflict, nil)
)

// CodeTransient marks persistence failures the caller may retry.
const CodeTransient = "PERSISTENCE_UNAVAILABLE"

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewTransient wraps a storage failure so it is not mistaken for a credential failure.
func NewTransient(err error) error {
	return &DomainError{
		Code:       CodeTransient,
		Message:    "storage temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsTransient reports whether err is a retryable persistence failure.
func IsTransient(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeTransient
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
