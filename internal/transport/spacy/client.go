// Package spacy provides a client for the spaCy NER sidecar, a small HTTP
// service that wraps a spaCy pipeline and returns named entity spans.
package spacy

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

// Client talks to the NER sidecar over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates an NER sidecar client. timeout bounds each request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type entsRequest struct {
	Text string `json:"text"`
}

type entsResponse struct {
	Entities []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
}

// ExtractEntities returns the named entity spans found in text.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]domain.NamedEntity, error) {
	body, err := json.Marshal(entsRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", domain.ErrEntityExtraction)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", domain.ErrEntityExtraction)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner sidecar unreachable: %v: %w", err, domain.ErrEntityExtraction)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner sidecar status %d: %s: %w", resp.StatusCode, snippet, domain.ErrEntityExtraction)
	}

	var parsed entsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, domain.ErrEntityExtraction)
	}

	ents := make([]domain.NamedEntity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		ents = append(ents, domain.NamedEntity{Text: e.Text, Label: e.Label})
	}
	return ents, nil
}

// HealthCheck probes the sidecar's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ner sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ner sidecar status %d", resp.StatusCode)
	}
	return nil
}
