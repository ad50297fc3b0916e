package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns a fixed response/error pair and counts calls.
type stubProvider struct {
	resp  CanonicalResponse
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, req Request) (CanonicalResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestBreakerProvider_PassesThroughSuccess(t *testing.T) {
	stub := &stubProvider{resp: CanonicalResponse{Text: "hello"}}
	provider := WithBreaker(stub)

	assert.Equal(t, "stub", provider.Name())

	resp, err := provider.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 1, stub.calls)
}

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubProvider{err: errors.New("backend down")}
	provider := WithBreaker(stub)

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = provider.Generate(context.Background(), Request{})
		require.Error(t, lastErr)
	}

	assert.Contains(t, lastErr.Error(), "circuit breaker is open")
	// Six failures trip the breaker; later calls are shed without reaching
	// the backend.
	assert.Equal(t, 6, stub.calls)
}

func TestBreakerProvider_ArgumentParseErrorDoesNotTrip(t *testing.T) {
	stub := &stubProvider{
		resp: CanonicalResponse{Text: "partial"},
		err:  &ArgumentParseError{Tool: "plan_steps", Raw: "{broken", Err: errors.New("bad json")},
	}
	provider := WithBreaker(stub)

	for i := 0; i < 10; i++ {
		resp, err := provider.Generate(context.Background(), Request{})

		// The degraded response still comes through alongside the error.
		var parseErr *ArgumentParseError
		require.ErrorAs(t, err, &parseErr)
		assert.False(t, strings.Contains(err.Error(), "circuit breaker is open"))
		assert.Equal(t, "partial", resp.Text)
	}
	assert.Equal(t, 10, stub.calls)
}

func TestBackendError_Error(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		err := &BackendError{Provider: "gemini", Status: "429 Too Many Requests", Body: "quota exceeded"}
		assert.Equal(t, "gemini error: 429 Too Many Requests - quota exceeded", err.Error())
	})

	t.Run("without body", func(t *testing.T) {
		err := &BackendError{Provider: "mistral", Status: "503 Service Unavailable"}
		assert.Equal(t, "mistral error: 503 Service Unavailable", err.Error())
	})
}

func TestArgumentParseError_Unwrap(t *testing.T) {
	inner := errors.New("unexpected token")
	err := &ArgumentParseError{Tool: "chat", Raw: "{", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "chat")
}
