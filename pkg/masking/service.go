package masking

import "log/slog"

// Service redacts credential-shaped substrings from tool output, credential
// handshake payloads, and log lines before they leave the process. Created
// once at application startup (singleton). Thread-safe and stateless aside
// from its compiled patterns (spec §4.5: the handshake must never log a
// raw API key; tool snippets returned to the synthesizer must not leak
// provider credentials echoed back in an error body).
type Service struct {
	patterns    map[string]*CompiledPattern
	codeMaskers []Masker
}

// NewService creates a masking service with every built-in pattern and
// code-based masker compiled/registered eagerly. Invalid regex patterns are
// logged and skipped rather than failing startup.
func NewService() *Service {
	s := &Service{
		patterns: compileBuiltinPatterns(func(name string, err error) {
			slog.Error("masking: failed to compile built-in pattern, skipping", "pattern", name, "error", err)
		}),
	}
	s.codeMaskers = append(s.codeMaskers, &CredentialJSONMasker{})

	slog.Info("masking service initialized",
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))

	return s
}

// Mask applies every code-based masker, then every regex pattern, to
// content and returns the result. Mask never fails: a masker or pattern
// that cannot apply leaves that part of the content untouched rather than
// raising, since masking failure must never block tool output from
// reaching the synthesizer (spec §4.6 treats masking as best-effort
// hygiene, not a hard gate).
func (s *Service) Mask(content string) string {
	if content == "" {
		return content
	}

	masked := content
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskCredential masks a single bare credential string (e.g. an API key
// read from the handshake) for safe inclusion in a log line.
func (s *Service) MaskCredential(raw string) string {
	if raw == "" {
		return raw
	}
	if len(raw) <= 8 {
		return "[MASKED_CREDENTIAL]"
	}
	return raw[:2] + "…" + raw[len(raw)-2:] + " [MASKED_CREDENTIAL]"
}
