package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
)

func writeEmptyToolConfig(path string) error {
	return os.WriteFile(path, []byte(`{"providers": {}}`), 0o644)
}

func newStubLLMServer(t *testing.T, generation string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"generation": generation})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlanner_ParsesValidJSONPlan(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)
	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	srv := newStubLLMServer(t, `{"category": "credit", "recommended_providers": ["rating_agency_api"], "reason": "asks about credit rating"}`)
	llm := llmclient.NewClient(srv.URL, "")
	p := NewPlanner(llm, r, "test-model")

	plan := p.Plan(t.Context(), "What is the credit rating outlook?")

	assert.Equal(t, "credit", string(plan.Category))
	assert.Equal(t, []string{"rating_agency_api"}, plan.RecommendedProviders)
	assert.Equal(t, "asks about credit rating", plan.Reason)
}

func TestPlanner_InvalidJSONFallsBackToSerpAPIWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)
	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	srv := newStubLLMServer(t, "not json at all")
	llm := llmclient.NewClient(srv.URL, "")
	p := NewPlanner(llm, r, "test-model")

	plan := p.Plan(t.Context(), "irrelevant question")

	assert.Equal(t, "generic", string(plan.Category))
	assert.Equal(t, []string{"serpapi"}, plan.RecommendedProviders)
	assert.Equal(t, "fallback", plan.Reason)
}

func TestPlanner_InvalidCategoryFallsBack(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)
	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	srv := newStubLLMServer(t, `{"category": "not_a_real_category", "recommended_providers": ["serpapi"], "reason": "bogus"}`)
	llm := llmclient.NewClient(srv.URL, "")
	p := NewPlanner(llm, r, "test-model")

	plan := p.Plan(t.Context(), "irrelevant question")

	assert.Equal(t, "generic", string(plan.Category))
	assert.Equal(t, "fallback", plan.Reason)
}

func TestPlanner_FallbackUsesGenericWebSearchWhenSerpAPINotConfigured(t *testing.T) {
	dir := t.TempDir()
	// Empty tool config: no providers configured, so serpapi is unavailable.
	toolCfg := filepath.Join(dir, "tool_config.json")
	require.NoError(t, writeEmptyToolConfig(toolCfg))
	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	srv := newStubLLMServer(t, "garbage")
	llm := llmclient.NewClient(srv.URL, "")
	p := NewPlanner(llm, r, "test-model")

	plan := p.Plan(t.Context(), "irrelevant question")

	assert.Equal(t, []string{GenericWebSearchProviderID}, plan.RecommendedProviders)
}

func TestParsePlanJSON_ExtractsOutermostBraces(t *testing.T) {
	raw := "Sure, here is the plan:\n" + `{"category": "market", "recommended_providers": [], "reason": "no external data needed"}` + "\nHope that helps!"
	plan, ok := parsePlanJSON(raw)
	require.True(t, ok)
	assert.Equal(t, "market", string(plan.Category))
	assert.Empty(t, plan.RecommendedProviders)
}

func TestParsePlanJSON_NoBracesFails(t *testing.T) {
	_, ok := parsePlanJSON("no json here")
	assert.False(t, ok)
}
