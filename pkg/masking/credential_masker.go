package masking

import (
	"encoding/json"
	"strings"
)

// MaskedCredentialValue is the replacement string for masked credential
// fields inside structured tool-provider payloads.
const MaskedCredentialValue = "[MASKED_CREDENTIAL]"

// credentialFieldNames are the JSON object keys that hold raw secrets in
// tool_config.json / credential handshake payloads (spec §4.5: API keys
// must never reach logs or memory in the clear).
var credentialFieldNames = map[string]struct{}{
	"api_key":      {},
	"apikey":       {},
	"token":        {},
	"access_token": {},
	"secret":       {},
	"password":     {},
}

// CredentialJSONMasker masks known credential fields in a JSON object
// before it is logged or persisted, the way the teacher's structural
// masker handles Kubernetes Secret resources: recognize the shape, then
// mask only the fields known to carry secrets rather than the whole blob.
type CredentialJSONMasker struct{}

// Name returns the unique identifier for this masker.
func (m *CredentialJSONMasker) Name() string { return "credential_json" }

// AppliesTo does a cheap substring check before attempting to parse JSON.
func (m *CredentialJSONMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	lower := strings.ToLower(data)
	for field := range credentialFieldNames {
		if strings.Contains(lower, `"`+field+`"`) {
			return true
		}
	}
	return false
}

// Mask parses data as a JSON object and masks any recognized credential
// field, returning the original data on any parse error (defensive).
func (m *CredentialJSONMasker) Mask(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}

	masked := false
	for key := range obj {
		if _, ok := credentialFieldNames[strings.ToLower(key)]; ok {
			obj[key] = MaskedCredentialValue
			masked = true
		}
	}
	if !masked {
		return data
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return data
	}
	return string(out)
}
