package llm

import (
	"context"

	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
)

// FileSystemSnapshot maps project file paths to their contents. A snapshot
// is immutable for the duration of one model call; only the workflow engine
// mutates it, one action at a time.
type FileSystemSnapshot map[string]string

// Part is one element of a conversation turn. Exactly one field is set.
type Part struct {
	Text             string          `json:"text,omitempty"`
	InlineImage      *InlineImage    `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall   `json:"functionCall,omitempty"`
	FunctionResult   *FunctionResult `json:"functionResponse,omitempty"`
}

// InlineImage carries base64 image data attached to a turn.
type InlineImage struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a tool invocation as it appears inside history parts and
// in the canonical response body.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResult is the recorded outcome of an earlier tool invocation.
type FunctionResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ConversationTurn is one user or assistant message with ordered parts.
type ConversationTurn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ActionCall is the normalized form of a tool invocation, independent of
// which backend produced it.
type ActionCall struct {
	Name string
	Args map[string]any
}

// CanonicalResponse is the uniform adapter output: optional text plus the
// tool invocations in the order the backend emitted them. The workflow
// engine relies on that order and never branches on the backend.
type CanonicalResponse struct {
	Text    string
	Actions []ActionCall
}

// Request is the canonical input to every adapter: the conversation so far,
// the project snapshot, the system instruction built from it, and the tool
// registry.
type Request struct {
	History     []ConversationTurn
	Snapshot    FileSystemSnapshot
	Instruction string
	Tools       *tools.Registry
}

// Codec encodes a canonical request into one backend's wire format and
// decodes that backend's reply back into the canonical shape. Both
// directions are pure: no I/O, no shared state.
type Codec interface {
	Encode(req Request) ([]byte, error)
	Decode(body []byte) (CanonicalResponse, error)
}

// Provider performs one blocking, non-streaming model call. Implementations
// wrap a Codec with the backend's transport details (endpoint, headers,
// status handling).
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (CanonicalResponse, error)
}
