package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatternSpec is the uncompiled form of a built-in pattern.
type builtinPatternSpec struct {
	name        string
	pattern     string
	replacement string
	description string
}

// builtinPatterns is the fixed catalog of secret-shaped substrings the
// credential handshake and tool-result logging must never let through
// uncompiled (spec §4.5's credential handshake: never log raw API keys).
var builtinPatterns = []builtinPatternSpec{
	{
		name:        "bearer_token",
		pattern:     `(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		replacement: "Bearer [MASKED_TOKEN]",
		description: "HTTP Authorization: Bearer <token> headers",
	},
	{
		name:        "api_key_assignment",
		pattern:     `(?i)(api[_-]?key|apikey|access[_-]?token|secret)\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]{8,}["']?`,
		replacement: "$1=[MASKED_CREDENTIAL]",
		description: "key=value or key: value style credential assignments",
	},
	{
		name:        "basic_auth_url",
		pattern:     `(?i)://[^\s:/@]+:[^\s@]+@`,
		replacement: "://[MASKED_USER]:[MASKED_PASSWORD]@",
		description: "userinfo embedded in a URL",
	},
	{
		name:        "generic_long_hex_secret",
		pattern:     `\b[A-Fa-f0-9]{32,}\b`,
		replacement: "[MASKED_HEX_SECRET]",
		description: "long hex-encoded secrets (hashes, raw keys)",
	},
}

// compileBuiltinPatterns compiles every built-in pattern spec, skipping and
// reporting (via logInvalid) any that fail to compile rather than aborting
// service startup.
func compileBuiltinPatterns(logInvalid func(name string, err error)) map[string]*CompiledPattern {
	compiled := make(map[string]*CompiledPattern, len(builtinPatterns))
	for _, spec := range builtinPatterns {
		re, err := regexp.Compile(spec.pattern)
		if err != nil {
			if logInvalid != nil {
				logInvalid(spec.name, err)
			}
			continue
		}
		compiled[spec.name] = &CompiledPattern{
			Name:        spec.name,
			Regex:       re,
			Replacement: spec.replacement,
			Description: spec.description,
		}
	}
	return compiled
}
