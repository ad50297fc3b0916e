package buildsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

// Client asks an external build-runner service to compile and lint a
// project snapshot. It implements workflow.Verifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// BuildRequest is the payload sent to the build runner.
type BuildRequest struct {
	Files map[string]string `json:"files"`
}

// BuildResult is the runner's verdict.
type BuildResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}

// NewClient builds a verifier backed by the build runner at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tracer: otel.Tracer("build-service-client"),
	}
}

// Verify submits the snapshot and returns nil on a passing build. A failing
// build returns an error carrying the runner's output so the model can read
// the diagnostics on its next turn.
func (c *Client) Verify(ctx context.Context, snapshot llm.FileSystemSnapshot) error {
	ctx, span := c.tracer.Start(ctx, "build_service.verify")
	defer span.End()
	span.SetAttributes(attribute.Int("build.files", len(snapshot)))

	body, err := json.Marshal(BuildRequest{Files: snapshot})
	if err != nil {
		return fmt.Errorf("failed to marshal build request: %w", err)
	}

	url := fmt.Sprintf("%s/build", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to reach build service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		span.SetAttributes(attribute.Int("build.status", resp.StatusCode))
		return fmt.Errorf("build service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result BuildResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode build result: %w", err)
	}

	span.SetAttributes(attribute.Bool("build.success", result.Success))
	if !result.Success {
		return fmt.Errorf("build failed: %s", result.Output)
	}
	return nil
}
