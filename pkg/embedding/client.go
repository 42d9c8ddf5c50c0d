// Package embedding wraps the remote embedding service (spec §4.1, C1).
// It exposes a single operation, Embed, which never raises: transport and
// parse failures degrade to a nil vector so callers fall back to
// token-based similarity.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client calls a remote embedding API: text in, fixed-length vector out.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
	maxRetries uint64
}

// NewClient creates an embedding client against the given service base URL
// (e.g. "https://embeddings.internal/v1") using modelID for every request.
func NewClient(baseURL, apiKey, modelID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelID:    modelID,
		maxRetries: 2,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

// Embed computes the embedding for text. It returns (nil, false) on any
// transport or parse failure — callers treat that as "no embedding
// available" and silently degrade to token-based similarity (spec §4.1).
func (c *Client) Embed(ctx context.Context, text string) ([]float64, bool) {
	if text == "" {
		return nil, false
	}

	var vector []float64
	op := func() error {
		v, err := c.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(boff, ctx)); err != nil {
		slog.Warn("embedding: call failed, degrading to no embedding", "error", err)
		return nil, false
	}
	return vector, true
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Model: c.modelID, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding service returned %d (retryable)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("embedding service returned %d", resp.StatusCode))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out.Vector, nil
}

// ModelID returns the configured embedding model identifier.
func (c *Client) ModelID() string { return c.modelID }
