package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error is the unified error interface returned by provider adapters and the client.
type Error interface {
	error
	Provider() string
	StatusCode() int
}

type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.TrimSpace(e.Message)
}
func (e *ConfigurationError) Provider() string { return "" }
func (e *ConfigurationError) StatusCode() int  { return 0 }

// TransportError covers failures below the HTTP status layer: connection
// errors, cancelled contexts, and response bodies that cannot be decoded.
type TransportError struct {
	provider string
	message  string
	cause    error
}

func (e *TransportError) Error() string {
	msg := strings.TrimSpace(e.message)
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	return fmt.Sprintf("%s transport error: %s", e.provider, msg)
}
func (e *TransportError) Provider() string { return e.provider }
func (e *TransportError) StatusCode() int  { return 0 }
func (e *TransportError) Unwrap() error    { return e.cause }

// WrapContextError wraps a transport-level failure. Context cancellation and
// deadline errors stay reachable through errors.Is.
func WrapContextError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request deadline exceeded"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}
	return &TransportError{provider: strings.TrimSpace(provider), message: msg, cause: err}
}

type httpErrorBase struct {
	provider   string
	statusCode int
	message    string
	raw        any
}

func (e *httpErrorBase) Error() string {
	msg := strings.TrimSpace(e.message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s error (status=%d): %s", e.provider, e.statusCode, msg)
}
func (e *httpErrorBase) Provider() string { return e.provider }
func (e *httpErrorBase) StatusCode() int  { return e.statusCode }

type InvalidRequestError struct{ httpErrorBase }
type AuthenticationError struct{ httpErrorBase }
type AccessDeniedError struct{ httpErrorBase }
type NotFoundError struct{ httpErrorBase }
type RequestTimeoutError struct{ httpErrorBase }
type ContextLengthError struct{ httpErrorBase }
type ContentFilterError struct{ httpErrorBase }
type QuotaExceededError struct{ httpErrorBase }
type RateLimitError struct{ httpErrorBase }
type ServerError struct{ httpErrorBase }
type UnknownHTTPError struct{ httpErrorBase }

func ErrorFromHTTPStatus(provider string, statusCode int, message string, raw any) error {
	base := httpErrorBase{
		provider:   strings.TrimSpace(provider),
		statusCode: statusCode,
		message:    message,
		raw:        raw,
	}
	switch statusCode {
	case 400, 422:
		// Ambiguous status codes: use message hints for specific classification.
		if err := classifyByMessage(base); err != nil {
			return err
		}
		return &InvalidRequestError{base}
	case 401:
		return &AuthenticationError{base}
	case 403:
		return &AccessDeniedError{base}
	case 404:
		return &NotFoundError{base}
	case 408:
		return &RequestTimeoutError{base}
	case 413:
		return &ContextLengthError{base}
	case 429:
		return &RateLimitError{base}
	case 500, 502, 503, 504:
		return &ServerError{base}
	default:
		return &UnknownHTTPError{base}
	}
}

// classifyByMessage refines classification when status code is ambiguous
// (primarily 400/422) and providers tunnel domain-specific failures in text.
func classifyByMessage(base httpErrorBase) error {
	lower := strings.ToLower(base.message)
	switch {
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{base}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{base}
	case strings.Contains(lower, "quota") || strings.Contains(lower, "billing"):
		return &QuotaExceededError{base}
	case strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return &NotFoundError{base}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid key"):
		return &AuthenticationError{base}
	}
	return nil
}

func IsAuthenticationError(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

// IsOracleError reports whether err originated from the completion layer
// (adapter, transport, or client configuration).
func IsOracleError(err error) bool {
	var e Error
	return errors.As(err, &e)
}
