package tools

import (
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
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
)

func newExecutorWithProvider(t *testing.T, providerID, endpointTemplate string, requiredFields []string, creds map[string]string) *Executor {
	t.Helper()
	dir := t.TempDir()
	toolCfgPath := filepath.Join(dir, "tool_config.json")

	cfgFile := config.ToolConfigFile{
		Providers: map[string]config.ProviderConfig{
			providerID: {
				Category:         config.CategoryGeneric,
				EndpointTemplate: endpointTemplate,
				RequiredFields:   requiredFields,
			},
		},
	}
	data, err := json.Marshal(cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(toolCfgPath, data, 0o644))

	credPath := filepath.Join(dir, ".tool_credentials.json")
	r, err := LoadRegistry(toolCfgPath, credPath)
	require.NoError(t, err)
	if len(creds) > 0 {
		require.NoError(t, r.SaveCredential(providerID, creds))
	}

	return NewExecutor(r, masking.NewService(), 2*time.Second)
}

func TestExecutor_TemplatedProviderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "q=quarterly")
		assert.Contains(t, r.URL.RawQuery, "api_key=sk-test")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"text": "Revenue grew 10% Bearer abc123def456", "url": "https://example.com/a"},
			},
		})
	}))
	defer srv.Close()

	e := newExecutorWithProvider(t, "serpapi", srv.URL+"?q={q}&api_key={api_key}", []string{"api_key"}, map[string]string{"api_key": "sk-test"})

	snippets := e.Execute(t.Context(), []string{"serpapi"}, "quarterly revenue", config.CategoryGeneric)

	require.Len(t, snippets, 1)
	assert.Equal(t, "serpapi", snippets[0].Tool)
	assert.Equal(t, "https://example.com/a", snippets[0].URL)
	assert.NotContains(t, snippets[0].Text, "abc123def456", "masking should have redacted the embedded secret")
}

func TestExecutor_ServerErrorFallsBackToDuckDuckGo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newExecutorWithProvider(t, "serpapi", srv.URL+"?q={q}&api_key={api_key}", []string{"api_key"}, map[string]string{"api_key": "sk-test"})

	snippets := e.Execute(t.Context(), []string{"serpapi"}, "quarterly revenue", config.CategoryGeneric)

	require.Len(t, snippets, 1)
	assert.True(t, snippets[0].Error, "unreachable DuckDuckGo fallback in a sandboxed test should fail closed")
}

func TestExecutor_NonGenericProviderFailureProducesFailedSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	toolCfgPath := filepath.Join(dir, "tool_config.json")
	cfgFile := config.ToolConfigFile{
		Providers: map[string]config.ProviderConfig{
			"rating_agency_api": {
				Category:         config.CategoryCredit,
				EndpointTemplate: srv.URL + "?q={q}&token={token}",
				RequiredFields:   []string{"token"},
			},
		},
	}
	data, err := json.Marshal(cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(toolCfgPath, data, 0o644))

	credPath := filepath.Join(dir, ".tool_credentials.json")
	r, err := LoadRegistry(toolCfgPath, credPath)
	require.NoError(t, err)
	require.NoError(t, r.SaveCredential("rating_agency_api", map[string]string{"token": "tok-1"}))

	e := NewExecutor(r, masking.NewService(), 2*time.Second)
	snippets := e.Execute(t.Context(), []string{"rating_agency_api"}, "credit outlook", config.CategoryCredit)

	require.Len(t, snippets, 1)
	assert.True(t, snippets[0].Error)
	assert.Equal(t, "rating_agency_api", snippets[0].Tool)
}

func TestExecutor_UnknownProviderProducesFailedSnippet(t *testing.T) {
	e := newExecutorWithProvider(t, "serpapi", "https://example.com?q={q}&api_key={api_key}", []string{"api_key"}, nil)

	snippets := e.Execute(t.Context(), []string{"does_not_exist"}, "query", config.CategoryGeneric)

	require.Len(t, snippets, 1)
	assert.True(t, snippets[0].Error)
}

func TestExecutor_CapsSnippetsAtMaxPerProvider(t *testing.T) {
	results := make([]map[string]string, 0, 10)
	for i := 0; i < 10; i++ {
		results = append(results, map[string]string{"text": "snippet", "url": "https://example.com"})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	e := newExecutorWithProvider(t, "serpapi", srv.URL+"?q={q}&api_key={api_key}", []string{"api_key"}, map[string]string{"api_key": "sk-test"})

	snippets := e.Execute(t.Context(), []string{"serpapi"}, "query", config.CategoryGeneric)

	assert.Len(t, snippets, DefaultMaxSnippetsPerProvider)
}

func TestExecutor_MultipleProvidersAggregate(t *testing.T) {
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]string{{"text": "from A", "url": "https://a.example.com"}}})
	}))
	defer srvA.Close()

	dir := t.TempDir()
	toolCfgPath := filepath.Join(dir, "tool_config.json")
	cfgFile := config.ToolConfigFile{
		Providers: map[string]config.ProviderConfig{
			"serpapi": {Category: config.CategoryGeneric, EndpointTemplate: srvA.URL + "?q={q}&api_key={api_key}", RequiredFields: []string{"api_key"}},
		},
	}
	data, err := json.Marshal(cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(toolCfgPath, data, 0o644))
	credPath := filepath.Join(dir, ".tool_credentials.json")
	r, err := LoadRegistry(toolCfgPath, credPath)
	require.NoError(t, err)
	require.NoError(t, r.SaveCredential("serpapi", map[string]string{"api_key": "sk-test"}))

	e := NewExecutor(r, masking.NewService(), 2*time.Second)
	snippets := e.Execute(t.Context(), []string{"serpapi"}, "query", config.CategoryGeneric)

	require.Len(t, snippets, 1)
	assert.True(t, strings.Contains(snippets[0].Text, "from A"))
}
