// Package llmclient wraps the remote chat/completion API in both blocking
// and token-streaming modes (spec §4.2, C2).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/Tangerg/lynx/sse"
	"github.com/cenkalti/backoff/v4"
)

// Client calls a remote chat/completion service over HTTP. Blocking calls
// hit a plain JSON endpoint; streaming calls consume a text/event-stream
// response, one JSON object per SSE "data:" field.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries uint64
}

// NewClient creates an LLM client against baseURL (e.g.
// "https://llm.internal/v1").
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: 2,
	}
}

// Options carries the per-call model id and optional temperature.
type Options struct {
	Model       string
	Temperature *float32
}

type chatRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream"`
}

type generationResponse struct {
	Generation string `json:"generation"`
}

// Call performs a blocking completion, returning the concatenated
// generation text. On any transport or parse failure, it returns "" rather
// than an error (spec §4.2) — callers should not treat an empty string as
// a signal distinct from "the model said nothing".
func (c *Client) Call(ctx context.Context, prompt string, opts Options) string {
	var text string
	op := func() error {
		t, err := c.callOnce(ctx, prompt, opts)
		if err != nil {
			return err
		}
		text = t
		return nil
	}

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(boff, ctx)); err != nil {
		slog.Warn("llmclient: blocking call failed, returning empty generation", "error", err)
		return ""
	}
	return text
}

func (c *Client) callOnce(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:       opts.Model,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("llm service returned %d (retryable)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("llm service returned %d", resp.StatusCode))
	}

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out.Generation, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Stream performs a streaming completion, returning a channel of
// incremental text pieces as the remote service produces them and a channel
// that carries at most one error. The streaming variant performs no output
// side effects of its own (no printing) — it is a pure generator so UI and
// evaluation layers can consume it identically (spec §4.2). Both channels
// are closed when the stream ends, including on error or context
// cancellation.
func (c *Client) Stream(ctx context.Context, prompt string, opts Options) (<-chan string, <-chan error) {
	pieces := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(pieces)
		defer close(errs)

		reqBody, err := json.Marshal(chatRequest{
			Model:       opts.Model,
			Prompt:      prompt,
			Temperature: opts.Temperature,
			Stream:      true,
		})
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
		if err != nil {
			errs <- fmt.Errorf("build request: %w", err)
			return
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("do request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("llm service returned %d", resp.StatusCode)
			return
		}

		dec := sse.NewDecoder(resp.Body)
		for dec.Next() {
			msg := dec.Current()
			if len(msg.Data) == 0 {
				continue
			}
			var gen generationResponse
			if err := json.Unmarshal(msg.Data, &gen); err != nil {
				slog.Warn("llmclient: skipping unparsable stream event", "error", err)
				continue
			}
			if gen.Generation == "" {
				continue
			}
			select {
			case pieces <- gen.Generation:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := dec.Error(); err != nil && err != io.EOF {
			errs <- fmt.Errorf("stream decode: %w", err)
		}
	}()

	return pieces, errs
}

// JoinPieces concatenates streamed pieces using the word-boundary join rule
// from spec §4.2: insert a single space between two non-whitespace pieces
// only when the following piece begins with an uppercase letter or the
// preceding piece ends with sentence-terminating punctuation; otherwise
// concatenate directly. This prevents both run-together tokens
// ("NOTRELEVANT") and over-splitting of subwords ("inv igorate").
func JoinPieces(pieces []string) string {
	var b strings.Builder
	for i, p := range pieces {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		if needsSpace(b.String(), p) {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

func needsSpace(soFar, next string) bool {
	if soFar == "" || next == "" {
		return false
	}
	prevRune := lastRune(soFar)
	nextRune := firstRune(next)
	if unicode.IsSpace(prevRune) || unicode.IsSpace(nextRune) {
		return false
	}
	if isSentenceTerminator(prevRune) {
		return true
	}
	if unicode.IsUpper(nextRune) {
		return true
	}
	return false
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
