// Package ai provides common types for the speech provider implementations.
// It defines the error classification shared by the STT, LLM, and TTS
// providers so callers can decide whether a failed call is worth retrying.
package ai

import (
	"context"
	"errors"
)

// Common error types used across providers
var (
	// ErrRecoverable indicates a temporary failure that may succeed if retried.
	// Examples: network timeout, rate limiting, temporary service unavailability.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent failure that will not succeed if retried.
	// Examples: invalid API key, unsupported format, malformed request.
	ErrFatal = errors.New("fatal provider error")
)

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal and should not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsTimeout reports whether an error is a deadline expiry. The pipeline
// treats a timed-out stage exactly like a failed one.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ProviderError wraps an underlying error with retry classification.
type ProviderError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *ProviderError) Unwrap() error {
	if e.Retryable {
		return ErrRecoverable
	}
	return ErrFatal
}

// NewRecoverableError creates a recoverable error with context.
func NewRecoverableError(underlying error, message string) error {
	return &ProviderError{
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context.
func NewFatalError(underlying error, message string) error {
	return &ProviderError{
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}
