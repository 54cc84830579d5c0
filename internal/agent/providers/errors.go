package providers

import (
	"errors"
	"fmt"
	"strings"
)

// FailureReason categorizes why a provider request failed, for retry logic
// and error reporting upstream.
type FailureReason string

const (
	// FailureRateLimit indicates rate limiting (HTTP 429)
	FailureRateLimit FailureReason = "rate_limit"

	// FailureAuth indicates authentication failure (HTTP 401, 403)
	FailureAuth FailureReason = "auth"

	// FailureTimeout indicates request timeout
	FailureTimeout FailureReason = "timeout"

	// FailureServerError indicates server-side issues (HTTP 5xx)
	FailureServerError FailureReason = "server_error"

	// FailureInvalidRequest indicates client-side issues (HTTP 400)
	FailureInvalidRequest FailureReason = "invalid_request"

	// FailureUnknown indicates an unclassified error
	FailureUnknown FailureReason = "unknown"
)

// IsRetryable returns true if the reason suggests retrying may succeed.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureRateLimit, FailureTimeout, FailureServerError:
		return true
	default:
		return false
	}
}

// Error represents a structured error from an LLM provider.
type Error struct {
	// Reason categorizes the error for retry logic
	Reason FailureReason

	// Provider is the provider name ("anthropic", "openai")
	Provider string

	// Model is the model that was requested
	Model string

	// Status is the HTTP status code, if applicable
	Status int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Classify wraps an error from a provider SDK into a structured Error with
// the reason inferred from the error content.
func Classify(provider, model string, err error) *Error {
	if err == nil {
		return nil
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr
	}

	reason := FailureUnknown
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		reason = FailureRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "api key"):
		reason = FailureAuth
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		reason = FailureTimeout
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "internal server"):
		reason = FailureServerError
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid"):
		reason = FailureInvalidRequest
	}

	return &Error{
		Reason:   reason,
		Provider: provider,
		Model:    model,
		Cause:    err,
	}
}

// IsRetryable reports whether an error should be retried.
func IsRetryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Reason.IsRetryable()
	}
	return Classify("", "", err).Reason.IsRetryable()
}
