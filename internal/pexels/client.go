package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.pexels.com"
	perPage        = 6
)

// Client searches Pexels for stock photos. It implements
// workflow.ImageSearcher.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

type searchResponse struct {
	Photos []photo `json:"photos"`
}

type photo struct {
	Src photoSrc `json:"src"`
}

type photoSrc struct {
	Large string `json:"large"`
}

// NewClient builds a Pexels client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		tracer: otel.Tracer("pexels-client"),
	}
}

// SetBaseURL overrides the endpoint for testing purposes.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Search returns photo URLs matching the query. Orientation is optional.
func (c *Client) Search(ctx context.Context, query, orientation string) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "pexels.search")
	defer span.End()
	span.SetAttributes(attribute.String("pexels.query", query))

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", fmt.Sprintf("%d", perPage))
	if orientation != "" {
		q.Set("orientation", orientation)
	}

	endpoint := fmt.Sprintf("%s/v1/search?%s", c.baseURL, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to call pexels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("pexels returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pexels response: %w", err)
	}

	urls := make([]string, 0, len(result.Photos))
	for _, p := range result.Photos {
		if p.Src.Large != "" {
			urls = append(urls, p.Src.Large)
		}
	}
	span.SetAttributes(attribute.Int("pexels.results", len(urls)))
	return urls, nil
}
