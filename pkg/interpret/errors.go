package interpret

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyBatch is returned when a request carries no frames.
	ErrEmptyBatch = errors.New("interpret: no frames captured")

	// ErrNoAPIKey is returned when API key is required but missing.
	ErrNoAPIKey = errors.New("interpret: API key required")

	// ErrNoContent is returned when the service answered without text.
	ErrNoContent = errors.New("interpret: no response content")
)

// APIError is a structured failure reported by the service in its error
// envelope (for example {"error":{"code":400,"message":"..."}}).
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code or status name (if provided).
	Code string

	// Provider identifies which backend returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("interpret [%s]: API error %d (%s): %s",
			e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("interpret [%s]: API error %d: %s",
		e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true for a rejected credential (HTTP 401/403).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// ProviderError wraps any non-structured failure with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("interpret [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ErrorKind classifies a submission failure.
type ErrorKind string

const (
	KindEmptyBatch ErrorKind = "empty_batch"
	KindService    ErrorKind = "service"
	KindUnexpected ErrorKind = "unexpected"
)

// UnexpectedPrefix starts every message for unclassified failures.
const UnexpectedPrefix = "An unexpected error occurred"

// Classify maps err to exactly one kind and a user-facing message.
// Service errors surface the service's own message; everything else
// gets the generic prefix.
func Classify(err error) (ErrorKind, string) {
	if errors.Is(err, ErrEmptyBatch) {
		return KindEmptyBatch, "No frames were captured. Record for at least a moment before stopping."
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("service returned status %d", apiErr.StatusCode)
		}
		return KindService, msg
	}

	return KindUnexpected, fmt.Sprintf("%s: %v", UnexpectedPrefix, err)
}
