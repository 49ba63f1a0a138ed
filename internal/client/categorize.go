package client

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout      ErrorCategory = "timeout"
	ErrorCategoryNetwork      ErrorCategory = "network"
	ErrorCategoryAuth         ErrorCategory = "auth"
	ErrorCategoryCityNotFound ErrorCategory = "city_not_found"
	ErrorCategoryRateLimited  ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx  ErrorCategory = "upstream_5xx"
	ErrorCategoryHTTP         ErrorCategory = "http"
	ErrorCategoryMalformed    ErrorCategory = "malformed"
	ErrorCategoryValidation   ErrorCategory = "validation"
	ErrorCategoryUnknown      ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnauthorized:
			return ErrorCategoryAuth
		case http.StatusNotFound:
			return ErrorCategoryCityNotFound
		case http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		}
		if se.Status >= 500 {
			return ErrorCategoryUpstream5xx
		}
		return ErrorCategoryHTTP
	}

	if errors.Is(err, ErrMalformedResponse) {
		return ErrorCategoryMalformed
	}

	if errors.Is(err, ErrTransport) {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}

	errStr := err.Error()
	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}

	return ErrorCategoryUnknown
}
