package toolagent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/tools"
)

func newStubLLMServer(t *testing.T, generation string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"generation": generation})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAgent_Run_HappyPath(t *testing.T) {
	dir := t.TempDir()

	toolSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{{"text": "Credit outlook stable.", "url": "https://ratings.example/x"}},
		})
	}))
	defer toolSrv.Close()

	toolCfgPath := filepath.Join(dir, "tool_config.json")
	cfgFile := config.ToolConfigFile{
		Providers: map[string]config.ProviderConfig{
			"rating_agency_api": {
				Category:         config.CategoryCredit,
				EndpointTemplate: toolSrv.URL + "?q={q}&token={token}",
				RequiredFields:   []string{"token"},
			},
		},
	}
	data, err := json.Marshal(cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(toolCfgPath, data, 0o644))

	credPath := filepath.Join(dir, ".tool_credentials.json")
	registry, err := tools.LoadRegistry(toolCfgPath, credPath)
	require.NoError(t, err)
	require.NoError(t, registry.SaveCredential("rating_agency_api", map[string]string{"token": "tok-1"}))

	llmSrv := newStubLLMServer(t, `{"category": "credit", "recommended_providers": ["rating_agency_api"], "reason": "credit question"}`)
	llm := llmclient.NewClient(llmSrv.URL, "")
	planner := tools.NewPlanner(llm, registry, "test-model")
	masker := masking.NewService()
	executor := tools.NewExecutor(registry, masker, 2*time.Second)

	agent := &Agent{Planner: planner, Registry: registry, Executor: executor, Masker: masker, Interactive: false, In: strings.NewReader(""), Out: &bytes.Buffer{}}

	text, snippets := agent.Run(t.Context(), "what is the credit rating outlook")

	require.Len(t, snippets, 1)
	assert.Equal(t, "rating_agency_api", snippets[0].Tool)
	assert.Contains(t, text, "Credit outlook stable.")
}

func TestAgent_Run_NonInteractiveUnconfiguredFallsBackToGeneric(t *testing.T) {
	dir := t.TempDir()
	toolCfgPath := filepath.Join(dir, "tool_config.json")
	cfgFile := config.ToolConfigFile{
		Providers: map[string]config.ProviderConfig{
			"serpapi": {Category: config.CategoryGeneric, EndpointTemplate: "https://serpapi.example/search?q={q}&api_key={api_key}", RequiredFields: []string{"api_key"}},
		},
	}
	data, err := json.Marshal(cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(toolCfgPath, data, 0o644))

	registry, err := tools.LoadRegistry(toolCfgPath, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	llmSrv := newStubLLMServer(t, `{"category": "generic", "recommended_providers": ["serpapi"], "reason": "no config"}`)
	llm := llmclient.NewClient(llmSrv.URL, "")
	planner := tools.NewPlanner(llm, registry, "test-model")
	masker := masking.NewService()
	executor := tools.NewExecutor(registry, masker, time.Second)

	agent := New(planner, registry, executor, masker, false)
	agent.In = strings.NewReader("")
	agent.Out = &bytes.Buffer{}

	_, snippets := agent.Run(t.Context(), "irrelevant query")

	require.Len(t, snippets, 1)
	assert.True(t, snippets[0].Error, "unreachable DuckDuckGo fallback in sandboxed test environment should fail closed")
}

func TestJoinSnippets_SkipsFailedSnippets(t *testing.T) {
	snippets := []domain.ToolSnippet{
		{Tool: "a", Text: "good text"},
		{Tool: "b", Text: "Tool failed or unavailable", Error: true},
	}
	joined := JoinSnippets(snippets)
	assert.Equal(t, "good text", joined)
}

func TestToExternalFacts_SkipsFailedSnippets(t *testing.T) {
	snippets := []domain.ToolSnippet{
		{Tool: "a", Text: "good text", URL: "https://x", Category: "credit"},
		{Tool: "b", Text: "Tool failed or unavailable", Error: true},
	}
	facts := ToExternalFacts(snippets)
	require.Len(t, facts, 1)
	assert.Equal(t, "good text", facts[0].Text)
	assert.Equal(t, "credit", facts[0].Category)
}
