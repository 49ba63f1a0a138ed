package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"401", &StatusError{Status: 401, Message: "auth"}, ErrorCategoryAuth},
		{"404", &StatusError{Status: 404, Message: "nope"}, ErrorCategoryCityNotFound},
		{"429", &StatusError{Status: 429, Message: "slow down"}, ErrorCategoryRateLimited},
		{"500", &StatusError{Status: 500, Message: "boom"}, ErrorCategoryUpstream5xx},
		{"503", &StatusError{Status: 503, Message: "later"}, ErrorCategoryUpstream5xx},
		{"418", &StatusError{Status: 418, Message: "teapot"}, ErrorCategoryHTTP},
		{"wrapped status error", fmt.Errorf("query: %w", &StatusError{Status: 404}), ErrorCategoryCityNotFound},
		{"malformed", fmt.Errorf("%w: decode: boom", ErrMalformedResponse), ErrorCategoryMalformed},
		{"transport network", fmt.Errorf("%w: connection refused", ErrTransport), ErrorCategoryNetwork},
		{"transport timeout", fmt.Errorf("%w: Client.Timeout exceeded", ErrTransport), ErrorCategoryTimeout},
		{"transport deadline", fmt.Errorf("%w: context deadline exceeded", ErrTransport), ErrorCategoryTimeout},
		{"validation-ish", errors.New("invalid city name"), ErrorCategoryValidation},
		{"anything else", errors.New("mystery"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
