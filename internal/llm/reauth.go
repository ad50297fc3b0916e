package llm

import (
	"net/http"
	"strings"
)

// AuthFailureClass is the result of classifying a third-party error reply.
type AuthFailureClass int

const (
	// FailureOther covers upstream errors unrelated to our credential.
	FailureOther AuthFailureClass = iota
	// FailureNeedsReauth means the credential should be re-validated or
	// replaced before retrying the provider.
	FailureNeedsReauth
)

// reauthPhrases is the documented mapping table from upstream error-body
// fragments to the needs-reauth class. Matching is case-insensitive
// substring matching; entries here are deliberately narrow because generic
// phrases like "not found" can also describe missing models or endpoints
// and would misclassify unrelated failures.
var reauthPhrases = []string{
	"invalid api key",
	"invalid x-api-key",
	"api key not valid",
	"api key expired",
	"bad credentials",
	"authentication error",
	"permission denied",
	"unauthenticated",
}

// ClassifyAuthFailure decides whether an upstream error reply indicates a
// credential problem. Status codes are authoritative; the body table is a
// fallback for backends that bury auth failures inside 400s.
func ClassifyAuthFailure(statusCode int, body string) AuthFailureClass {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return FailureNeedsReauth
	}
	lower := strings.ToLower(body)
	for _, phrase := range reauthPhrases {
		if strings.Contains(lower, phrase) {
			return FailureNeedsReauth
		}
	}
	return FailureOther
}
