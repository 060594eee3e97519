// Package crossenc provides a client for the cross-encoder reranking sidecar.
// The sidecar scores query/passage pairs in a single batched call.
package crossenc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// Client talks to the reranking sidecar over HTTP.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

// New creates a reranker client. timeout bounds each request.
func New(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Model    string   `json:"model,omitempty"`
	Passages []string `json:"passages"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Score returns one relevance score per passage, in input order.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Model: c.model, Passages: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", domain.ErrRerank)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", domain.ErrRerank)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker unreachable: %v: %w", err, domain.ErrRerank)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reranker status %d: %s: %w", resp.StatusCode, snippet, domain.ErrRerank)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, domain.ErrRerank)
	}

	if len(parsed.Scores) != len(passages) {
		return nil, fmt.Errorf("score count %d does not match passage count %d: %w",
			len(parsed.Scores), len(passages), domain.ErrRerank)
	}
	return parsed.Scores, nil
}

// HealthCheck probes the sidecar's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("reranker unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reranker status %d", resp.StatusCode)
	}
	return nil
}
