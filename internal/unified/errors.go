package unified

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error is the terminal failure shape returned to callers. Provider-native
// error bodies never reach the caller directly.
type Error struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Param    string `json:"param"`
	Code     string `json:"code"`
	Provider string `json:"provider"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Body renders the error envelope sent to callers.
func (e *Error) Body() map[string]any {
	nullable := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	return map[string]any{
		"error": map[string]any{
			"message": e.Message,
			"type":    nullable(e.Type),
			"param":   nullable(e.Param),
			"code":    nullable(e.Code),
		},
		"provider": e.Provider,
	}
}

// NewError stamps the provider and prefixes the message with it.
func NewError(provider, message, typ, param, code string) *Error {
	msg := message
	if provider != "" {
		msg = fmt.Sprintf("%s error: %s", provider, message)
	}
	return &Error{Message: msg, Type: typ, Param: param, Code: code, Provider: provider}
}

// ValidationError reports a request that cannot be built. It is raised before
// any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("missing required parameter: %s", e.Field)
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// ErrMissingCredentials is the single user-facing message for any credential
// exchange or assumption failure.
const ErrMissingCredentials = "Missing required credentials"

// MissingCredentials returns the validation error reported when resolved
// credential material is empty.
func MissingCredentials() *ValidationError {
	return &ValidationError{Message: ErrMissingCredentials}
}

// AuthError reports a credential exchange that failed outright.
type AuthError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

func (e *AuthError) StatusCode() int { return http.StatusUnauthorized }

// UpstreamError carries a normalized provider error and the upstream status.
type UpstreamError struct {
	Status int
	Err    *Error
	// RetryAfter is the provider's requested backoff, zero when absent.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Err.Error())
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// TransportError reports a failure below the HTTP layer. Retries belong to
// the transport layer, never to the adapters.
type TransportError struct {
	Provider string
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) StatusCode() int { return http.StatusBadGateway }

// StatusClientClosedRequest is reported when the caller went away before the
// provider answered.
const StatusClientClosedRequest = 499

// AsError folds any error produced by the core into the unified error shape
// together with the HTTP status the dispatch layer should use.
func AsError(err error, provider string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}
	var (
		upstream   *UpstreamError
		validation *ValidationError
		authErr    *AuthError
		transport  *TransportError
		unifiedErr *Error
	)
	switch {
	case errors.As(err, &upstream):
		out := *upstream.Err
		if out.Provider == "" {
			out.Provider = provider
		}
		return &out, upstream.StatusCode()
	case errors.As(err, &validation):
		return &Error{Message: validation.Error(), Type: "invalid_request_error", Param: validation.Field, Provider: provider}, validation.StatusCode()
	case errors.As(err, &authErr):
		return &Error{Message: ErrMissingCredentials, Type: "authentication_error", Provider: provider}, authErr.StatusCode()
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Message: fmt.Sprintf("%s error: request timed out", provider), Type: "timeout_error", Provider: provider}, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return &Error{Message: "request cancelled by client", Type: "request_cancelled", Provider: provider}, StatusClientClosedRequest
	case errors.As(err, &transport):
		return &Error{Message: fmt.Sprintf("%s error: upstream unreachable", provider), Type: "api_error", Provider: provider}, transport.StatusCode()
	case errors.As(err, &unifiedErr):
		out := *unifiedErr
		if out.Provider == "" {
			out.Provider = provider
		}
		return &out, http.StatusInternalServerError
	}
	return &Error{Message: err.Error(), Type: "api_error", Provider: provider}, http.StatusInternalServerError
}
