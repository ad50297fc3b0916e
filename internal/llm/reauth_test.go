package llm

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAuthFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected AuthFailureClass
	}{
		{
			name:     "401 always needs reauth",
			status:   http.StatusUnauthorized,
			body:     "",
			expected: FailureNeedsReauth,
		},
		{
			name:     "403 always needs reauth",
			status:   http.StatusForbidden,
			body:     "quota stuff",
			expected: FailureNeedsReauth,
		},
		{
			name:     "400 with buried key phrase",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"API key not valid. Please pass a valid API key."}}`,
			expected: FailureNeedsReauth,
		},
		{
			name:     "matching is case-insensitive",
			status:   http.StatusBadRequest,
			body:     "INVALID API KEY",
			expected: FailureNeedsReauth,
		},
		{
			name:     "anthropic style authentication error",
			status:   http.StatusBadRequest,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			expected: FailureNeedsReauth,
		},
		{
			name:     "expired key",
			status:   http.StatusBadRequest,
			body:     "your api key expired last month",
			expected: FailureNeedsReauth,
		},
		{
			name:     "plain validation error",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"unknown field \"foo\""}}`,
			expected: FailureOther,
		},
		{
			name:     "rate limit is not a credential problem",
			status:   http.StatusTooManyRequests,
			body:     "rate limit exceeded",
			expected: FailureOther,
		},
		{
			name:     "server error is not a credential problem",
			status:   http.StatusInternalServerError,
			body:     "internal error",
			expected: FailureOther,
		},
		{
			name:     "generic not found stays other",
			status:   http.StatusNotFound,
			body:     "model not found",
			expected: FailureOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyAuthFailure(tt.status, tt.body))
		})
	}
}
