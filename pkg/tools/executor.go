package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
)

// DefaultMaxSnippetsPerProvider is the fixed cap on snippets returned per
// provider (spec §4.6).
const DefaultMaxSnippetsPerProvider = 5

// providerResponse is the documented shape every templated provider is
// expected to return: a flat list of result records.
type providerResponse struct {
	Results []struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	} `json:"results"`
}

// Executor dispatches tool calls by provider category: a tagged-variant
// table of category -> executor function, plus a per-provider override for
// the built-in generic web-search fallback (spec §4.6's "dynamic dispatch"
// note — avoid deep class hierarchies).
type Executor struct {
	registry               *Registry
	masker                 *masking.Service
	httpClient             *http.Client
	perCallTimeout         time.Duration
	maxSnippetsPerProvider int
}

// NewExecutor creates an Executor over registry, masking every snippet's
// text through masker before it reaches the caller.
func NewExecutor(registry *Registry, masker *masking.Service, perCallTimeout time.Duration) *Executor {
	return &Executor{
		registry:               registry,
		masker:                 masker,
		httpClient:             &http.Client{Timeout: perCallTimeout},
		perCallTimeout:         perCallTimeout,
		maxSnippetsPerProvider: DefaultMaxSnippetsPerProvider,
	}
}

// Execute calls every ready provider for query/category and concatenates
// their normalized snippets. Every provider call is isolated so one
// provider's failure (or panic) never prevents the others from running
// (spec §4.6: exceptions become structured error snippets, never raised).
func (e *Executor) Execute(ctx context.Context, readyProviders []string, query string, category config.ToolCategory) []domain.ToolSnippet {
	var all []domain.ToolSnippet
	for _, id := range readyProviders {
		all = append(all, e.callProvider(ctx, id, query, category)...)
	}
	return all
}

func (e *Executor) callProvider(ctx context.Context, id, query string, category config.ToolCategory) (snippets []domain.ToolSnippet) {
	defer func() {
		if r := recover(); r != nil {
			snippets = []domain.ToolSnippet{domain.FailedToolSnippet(id, string(category))}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.perCallTimeout)
	defer cancel()

	if id == GenericWebSearchProviderID {
		return e.executeDuckDuckGoFallback(callCtx, id, query)
	}

	p, ok := e.registry.Provider(id)
	if !ok {
		return []domain.ToolSnippet{domain.FailedToolSnippet(id, string(category))}
	}

	if p.Category == config.CategoryGeneric {
		snippets, err := e.executeTemplatedProvider(callCtx, id, p, query)
		if err != nil {
			return e.executeDuckDuckGoFallback(callCtx, id, query)
		}
		return snippets
	}

	snippets, err := e.executeTemplatedProvider(callCtx, id, p, query)
	if err != nil {
		return []domain.ToolSnippet{domain.FailedToolSnippet(id, string(p.Category))}
	}
	return snippets
}

// executeTemplatedProvider substitutes {q} and every credential field into
// the provider's endpoint_template, issues a GET request, and parses the
// documented {results: [{text, url}]} shape (spec §4.5/§4.6).
func (e *Executor) executeTemplatedProvider(ctx context.Context, id string, p config.ProviderConfig, query string) ([]domain.ToolSnippet, error) {
	endpoint := strings.ReplaceAll(p.EndpointTemplate, "{q}", url.QueryEscape(query))
	for _, field := range p.RequiredFields {
		endpoint = strings.ReplaceAll(endpoint, "{"+field+"}", url.QueryEscape(e.registry.CredentialValue(id, field)))
	}

	var body providerResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("provider %s returned %d (retryable)", id, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("provider %s returned %d", id, resp.StatusCode))
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	if err := backoff.Retry(op, backoff.WithContext(boff, ctx)); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	snippets := make([]domain.ToolSnippet, 0, len(body.Results))
	for i, r := range body.Results {
		if i >= e.maxSnippetsPerProvider {
			break
		}
		snippets = append(snippets, domain.ToolSnippet{
			Tool:      id,
			Category:  string(p.Category),
			Text:      e.masker.Mask(r.Text),
			URL:       r.URL,
			FetchedAt: now,
		})
	}
	return snippets, nil
}
