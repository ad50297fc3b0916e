package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all provider clients.
var (
	// ErrMissingCredential means the operator has not configured an API key
	// for the selected provider. Operator-facing, maps to HTTP 500.
	ErrMissingCredential = errors.New("provider credential not configured")

	// ErrUnauthorized means the backend rejected our credential.
	ErrUnauthorized = errors.New("provider rejected credential")

	// ErrRateLimited means the backend returned 429.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrUnavailable means the backend returned a 5xx status.
	ErrUnavailable = errors.New("provider unavailable")
)

// BackendError carries a non-success upstream reply verbatim. No retries are
// performed here; recovery is the calling model's debug loop.
type BackendError struct {
	Provider string
	Status   string
	Body     string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s error: %s - %s", e.Provider, e.Status, e.Body)
}

// ArgumentParseError reports a tool call whose serialized arguments could
// not be decoded. It must not abort the request: the decode still returns a
// degraded CanonicalResponse carrying any partial text and zero actions,
// and the handler answers 200 with that degraded body.
type ArgumentParseError struct {
	Tool string
	Raw  string
	Err  error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("tool %q arguments failed to parse: %v", e.Tool, e.Err)
}

func (e *ArgumentParseError) Unwrap() error {
	return e.Err
}
