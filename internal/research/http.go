package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway posts {query, context} to a research endpoint and reads back
// {research}. This mirrors the hosted research function contract.
type HTTPGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithAPIKey sets a bearer token for the endpoint.
func WithAPIKey(key string) HTTPOption {
	return func(g *HTTPGateway) { g.apiKey = key }
}

// WithHTTPClient replaces the default client (used by tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) { g.client = c }
}

// NewHTTPGateway creates a gateway for the given endpoint URL.
func NewHTTPGateway(endpoint string, opts ...HTTPOption) (*HTTPGateway, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("research endpoint is required")
	}
	g := &HTTPGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type researchRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

type researchResponse struct {
	Research string `json:"research"`
}

// Query implements Gateway.
func (g *HTTPGateway) Query(ctx context.Context, query, convContext string) (string, error) {
	body, err := json.Marshal(researchRequest{Query: query, Context: convContext})
	if err != nil {
		return "", fmt.Errorf("encode research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("research request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("research endpoint returned %s", resp.Status)
	}

	var out researchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode research response: %w", err)
	}
	return out.Research, nil
}

// Name implements Gateway.
func (g *HTTPGateway) Name() string { return "http" }
