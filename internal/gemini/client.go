package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
)

// Client calls the Gemini generateContent endpoint through the Codec.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	codec   Codec
	client  *http.Client
}

// NewClient builds a Gemini provider. The key may be empty; Generate then
// fails with llm.ErrMissingCredential so the handler can answer 500.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL overrides the endpoint for testing purposes.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Name identifies this provider in logs and breaker state.
func (c *Client) Name() string {
	return "gemini"
}

// Generate performs one blocking generateContent call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.CanonicalResponse, error) {
	if c.apiKey == "" {
		return llm.CanonicalResponse{}, llm.ErrMissingCredential
	}

	body, err := c.codec.Encode(req)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return llm.CanonicalResponse{}, fmt.Errorf("failed to call gemini: %w", err)
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
