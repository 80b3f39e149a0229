package provider

import (
	"net/http"
	"strings"
)

// ErrorCategory classifies upstream failures for the dispatch layer.
type ErrorCategory int

const (
	// CategoryUnknown is the default category for unclassified errors
	CategoryUnknown ErrorCategory = iota

	// CategoryUserError indicates a request the provider rejected as malformed.
	CategoryUserError

	// CategoryAuthError indicates rejected or expired credentials.
	CategoryAuthError

	// CategoryQuotaError indicates rate limiting or quota exhaustion.
	CategoryQuotaError

	// CategoryTransient indicates temporary server-side errors.
	CategoryTransient

	// CategoryNotFound indicates an unknown model, job or file.
	CategoryNotFound
)

// String returns human-readable category name
func (c ErrorCategory) String() string {
	switch c {
	case CategoryUserError:
		return "user_error"
	case CategoryAuthError:
		return "auth_error"
	case CategoryQuotaError:
		return "quota_error"
	case CategoryTransient:
		return "transient"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// IsUserFault returns true if error is caused by user's request
func (c ErrorCategory) IsUserFault() bool {
	return c == CategoryUserError || c == CategoryNotFound
}

// CategorizeHTTPStatus determines category from HTTP status code
func CategorizeHTTPStatus(statusCode int) ErrorCategory {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CategoryUserError
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuthError
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return CategoryQuotaError
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return CategoryTransient
	default:
		if statusCode >= 400 && statusCode < 500 {
			return CategoryUserError
		}
		if statusCode >= 500 {
			return CategoryTransient
		}
		return CategoryUnknown
	}
}

// CategorizeError determines category from error message and status code.
// Message patterns cover the Google RPC status names, AWS exception types and
// OpenAI error codes the adapters normalize.
func CategorizeError(statusCode int, message string) ErrorCategory {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "unauthenticated", "permission_denied", "accessdeniedexception",
		"unrecognizedclientexception", "expiredtokenexception", "invalid_api_key"):
		return CategoryAuthError
	case containsAny(lower, "resource_exhausted", "throttlingexception", "servicequotaexceeded",
		"rate limit", "too many requests", "quota"):
		return CategoryQuotaError
	case containsAny(lower, "invalid_argument", "validationexception", "invalid_request_error",
		"malformed", "missing required"):
		return CategoryUserError
	case containsAny(lower, "not_found", "resourcenotfoundexception"):
		return CategoryNotFound
	}
	return CategorizeHTTPStatus(statusCode)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
