// Package errors defines the error taxonomy shared across the prompt cache.
// Namespace-level failures are sentinel errors suitable for errors.Is checks;
// completion and embedding backend failures are mapped to ProviderError
// before they cross a package boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNamespaceExists is returned when creating a namespace that is
	// already present. Callers doing lazy create-if-absent swallow it.
	ErrNamespaceExists = errors.New("namespace already exists")

	// ErrNamespaceNotFound is returned on writes against a project whose
	// namespace has not been provisioned. Reads never return it; absence
	// on the read path is an empty result.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrCredentialsExhausted is returned by a key-rotating provider once
	// every credential has been attempted without success. It always wraps
	// the last observed error.
	ErrCredentialsExhausted = errors.New("all credentials exhausted")
)

// ProviderError represents a standardized error from a completion or
// embedding backend.
type ProviderError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Provider   string `json:"provider"`
	Retryable  bool   `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (provider=%s, code=%d)",
		e.Type, e.Message, e.Provider, e.StatusCode)
}

// RateLimited reports whether the backend signaled a rate limit. A rotating
// provider treats this as "skip the current credential, try the next one".
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Common error types as constants for consistency.
const (
	TypeAuthentication     = "authentication_error"
	TypeRateLimit          = "rate_limit_error"
	TypeInvalidRequest     = "invalid_request_error"
	TypeServiceUnavailable = "service_unavailable_error"
	TypeTransport          = "transport_error"
	TypeInternalError      = "internal_error"
)

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(provider, message string) *ProviderError {
	return &ProviderError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimit,
		Provider:   provider,
		Retryable:  true,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(provider, message string) *ProviderError {
	return &ProviderError{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Type:       TypeAuthentication,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewTransportError wraps a network-level failure that never produced an
// HTTP status. Transport failures are retryable: the next credential or
// provider may sit behind a healthy path.
func NewTransportError(provider string, err error) *ProviderError {
	return &ProviderError{
		Message:   err.Error(),
		Type:      TypeTransport,
		Provider:  provider,
		Retryable: true,
	}
}

// NewStatusError maps an HTTP status from a backend to a ProviderError.
func NewStatusError(provider string, status int, body string) *ProviderError {
	typ := TypeInternalError
	retryable := status >= http.StatusInternalServerError
	switch status {
	case http.StatusTooManyRequests:
		typ = TypeRateLimit
		retryable = true
	case http.StatusUnauthorized, http.StatusForbidden:
		typ = TypeAuthentication
		retryable = false
	case http.StatusBadRequest:
		typ = TypeInvalidRequest
		retryable = false
	case http.StatusServiceUnavailable:
		typ = TypeServiceUnavailable
		retryable = true
	}
	return &ProviderError{
		StatusCode: status,
		Message:    body,
		Type:       typ,
		Provider:   provider,
		Retryable:  retryable,
	}
}

// IsRateLimit reports whether err is a rate-limit ProviderError.
func IsRateLimit(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited()
}

// IsTransport reports whether err is a transport-level ProviderError.
func IsTransport(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Type == TypeTransport
}
