package anthropic

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
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
	defaultModel   = "claude-sonnet-4-5"
)

// Client calls the Anthropic Messages endpoint through the Codec.
type Client struct {
	baseURL string
	apiKey  string
	codec   Codec
	client  *http.Client
}

// NewClient builds an Anthropic provider.
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
	return "anthropic"
}

// Generate performs one blocking Messages call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.CanonicalResponse, error) {
	if c.apiKey == "" {
		return llm.CanonicalResponse{}, llm.ErrMissingCredential
	}

	body, err := c.codec.Encode(req)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", defaultVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to call anthropic: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if llm.ClassifyAuthFailure(resp.StatusCode, string(respBody)) == llm.FailureNeedsReauth {
			return llm.CanonicalResponse{}, llm.ErrUnauthorized
		}
		return llm.CanonicalResponse{}, &llm.BackendError{
			Provider: c.Name(),
			Status:   resp.Status,
			Body:     string(respBody),
		}
	}

	return c.codec.Decode(respBody)
}
