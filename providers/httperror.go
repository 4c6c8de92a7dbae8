package providers

import (
	"fmt"
	"strings"

	"github.com/ferro-labs/ai-gateway/gwerr"
)

// ClassifyHTTPError maps a provider's HTTP response status (and, for the
// ambiguous 400 case, a sniff of the error message) to a gwerr.Kind. Every
// REST-based adapter in this package funnels its non-2xx responses through
// this one table so the fallback-chain retry logic in
// internal/strategies can tell a permanent client error apart from a
// transient upstream one without knowing anything about the specific
// provider's wire format.
func ClassifyHTTPError(statusCode int, message string) gwerr.Kind {
	lower := strings.ToLower(message)

	switch statusCode {
	case 400, 422:
		switch {
		case strings.Contains(lower, "context") && (strings.Contains(lower, "length") || strings.Contains(lower, "token") || strings.Contains(lower, "too long") || strings.Contains(lower, "maximum")):
			return gwerr.ContextLengthExceeded
		case strings.Contains(lower, "content") && (strings.Contains(lower, "filter") || strings.Contains(lower, "policy") || strings.Contains(lower, "safety")):
			return gwerr.ContentFiltered
		case strings.Contains(lower, "tool") || strings.Contains(lower, "function"):
			return gwerr.ToolValidationError
		default:
			return gwerr.InvalidRequest
		}
	case 401:
		return gwerr.Unauthenticated
	case 403:
		return gwerr.Forbidden
	case 404:
		return gwerr.NotFound
	case 408:
		return gwerr.ProviderTimeout
	case 429:
		return gwerr.ProviderRateLimited
	case 502, 503, 504:
		return gwerr.ProviderUnavailable
	default:
		if statusCode >= 500 {
			return gwerr.ProviderUnavailable
		}
		return gwerr.Internal
	}
}

// NewHTTPError builds a classified *gwerr.Error for a provider's non-2xx
// HTTP response, preserving the provider/status/message text the old
// fmt.Errorf call sites produced so logs and returned error strings read
// the same way.
func NewHTTPError(provider string, statusCode int, message string) *gwerr.Error {
	kind := ClassifyHTTPError(statusCode, message)
	return gwerr.New(kind, fmt.Sprintf("%s API error (%d): %s", provider, statusCode, message))
}
