package mistral

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

const (
	defaultBaseURL    = "https://api.mistral.ai"
	defaultModel      = "mistral-large-latest"
	maxErrorBodyBytes = 2048
)

// Client calls the Mistral chat-completions endpoint through the Codec.
type Client struct {
	baseURL string
	apiKey  string
	codec   Codec
	client  *http.Client
}

// NewClient builds a Mistral provider.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		codec:   Codec{Model: defaultModel},
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL overrides the endpoint for testing purposes.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Name identifies this provider in logs and breaker state.
func (c *Client) Name() string {
	return "mistral"
}

// Generate performs one blocking chat-completions call. An
// ArgumentParseError from decoding is passed through together with the
// degraded response so the handler can still answer 200.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.CanonicalResponse, error) {
	if c.apiKey == "" {
		return llm.CanonicalResponse{}, llm.ErrMissingCredential
	}

	body, err := c.codec.Encode(req)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to call mistral: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if llm.ClassifyAuthFailure(resp.StatusCode, string(errorBody)) == llm.FailureNeedsReauth {
			return llm.CanonicalResponse{}, llm.ErrUnauthorized
		}
		return llm.CanonicalResponse{}, &llm.BackendError{
			Provider: c.Name(),
			Status:   resp.Status,
			Body:     string(errorBody),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	return c.codec.Decode(respBody)
}
