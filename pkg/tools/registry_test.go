package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToolConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tool_config.json")
	data := `{
		"providers": {
			"serpapi": {"category": "generic", "endpoint_template": "https://serpapi.example/search?q={q}&api_key={api_key}", "required_fields": ["api_key"]},
			"rating_agency_api": {"category": "credit", "endpoint_template": "https://ratings.example/{q}?token={token}", "required_fields": ["token"]}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadRegistry_MissingCredentialsFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)

	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)
	assert.False(t, r.Ready("serpapi"))
	assert.Equal(t, []string{"api_key"}, r.MissingFields("serpapi"))
}

func TestRegistry_SaveCredentialMakesProviderReady(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)
	credPath := filepath.Join(dir, ".tool_credentials.json")

	r, err := LoadRegistry(toolCfg, credPath)
	require.NoError(t, err)
	require.False(t, r.Ready("serpapi"))

	require.NoError(t, r.SaveCredential("serpapi", map[string]string{"api_key": "sk-test"}))
	assert.True(t, r.Ready("serpapi"))
	assert.Equal(t, "sk-test", r.CredentialValue("serpapi", "api_key"))

	data, err := os.ReadFile(credPath)
	require.NoError(t, err)
	var persisted map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "sk-test", persisted["serpapi"]["api_key"])
}

func TestRegistry_UnknownProviderIsAlwaysMissing(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)

	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	assert.False(t, r.Ready("nonexistent"))
	assert.Equal(t, []string{"nonexistent"}, r.MissingFields("nonexistent"))
}

func TestRegistry_ConfiguredProviderIDs(t *testing.T) {
	dir := t.TempDir()
	toolCfg := writeToolConfig(t, dir)

	r, err := LoadRegistry(toolCfg, filepath.Join(dir, ".tool_credentials.json"))
	require.NoError(t, err)

	ids := r.ConfiguredProviderIDs()
	assert.ElementsMatch(t, []string{"serpapi", "rating_agency_api"}, ids)
}
