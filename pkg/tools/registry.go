package tools

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
)

var validate = validator.New()

// Registry is the loaded-once, read-only-at-query-time tool provider
// catalog plus whatever credentials have been resolved so far (spec §4.5:
// "the tool registry and credential store behave like process-wide
// configuration ... never mutate them from inside a query" — mutation only
// happens through SaveCredential, which is the out-of-band handshake path).
type Registry struct {
	providers       map[string]config.ProviderConfig
	credentials     map[string]map[string]string
	credentialsPath string
}

// LoadRegistry reads tool_config.json (providers) and, if present,
// credentialsPath (a JSON object of provider_id -> field -> value). A
// missing credentials file is not an error: every provider simply starts
// unconfigured.
func LoadRegistry(toolConfigPath, credentialsPath string) (*Registry, error) {
	data, err := os.ReadFile(toolConfigPath)
	if err != nil {
		return nil, fmt.Errorf("tools: read tool config: %w", err)
	}

	var file config.ToolConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tools: parse tool config: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("tools: invalid tool config: %w", err)
	}

	r := &Registry{
		providers:       file.Providers,
		credentials:     make(map[string]map[string]string),
		credentialsPath: credentialsPath,
	}

	credData, err := os.ReadFile(credentialsPath)
	if err == nil {
		var creds map[string]map[string]string
		if jsonErr := json.Unmarshal(credData, &creds); jsonErr == nil {
			r.credentials = creds
		}
	}

	return r, nil
}

// Provider returns the configuration for id, if it exists in the catalog.
func (r *Registry) Provider(id string) (config.ProviderConfig, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// ConfiguredProviderIDs returns every provider id present in tool_config.json.
func (r *Registry) ConfiguredProviderIDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// MissingFields returns the required_fields of provider id that are absent
// or empty in the resolved credentials. A provider not in the catalog is
// reported as entirely missing its own id as the single required field.
func (r *Registry) MissingFields(id string) []string {
	p, ok := r.providers[id]
	if !ok {
		return []string{id}
	}
	creds := r.credentials[id]
	var missing []string
	for _, field := range p.RequiredFields {
		if creds == nil || creds[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Ready reports whether provider id is in the catalog and every required
// field has a non-empty credential value.
func (r *Registry) Ready(id string) bool {
	_, ok := r.providers[id]
	return ok && len(r.MissingFields(id)) == 0
}

// CredentialValue returns one resolved credential field for provider id.
func (r *Registry) CredentialValue(id, field string) string {
	if r.credentials[id] == nil {
		return ""
	}
	return r.credentials[id][field]
}

// SaveCredential persists fields for provider id into the credentials file,
// merging with whatever was already on disk, and updates the in-memory
// view. Writes are not atomic-rename based like the memory store — the
// credentials file is operator-maintained, out-of-band, low-frequency
// configuration rather than a query-time shared resource (spec §5).
func (r *Registry) SaveCredential(id string, fields map[string]string) error {
	if r.credentials[id] == nil {
		r.credentials[id] = make(map[string]string)
	}
	for k, v := range fields {
		r.credentials[id][k] = v
	}

	data, err := json.MarshalIndent(r.credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("tools: marshal credentials: %w", err)
	}
	if err := os.WriteFile(r.credentialsPath, data, 0o600); err != nil {
		return fmt.Errorf("tools: write credentials file: %w", err)
	}
	return nil
}
