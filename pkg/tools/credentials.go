package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
)

// GenericWebSearchProviderID is the built-in provider requiring no
// credentials: a SerpAPI-less web search that falls back to scraping
// DuckDuckGo's HTML results page (spec §4.6). It is never looked up in the
// registry's provider catalog.
const GenericWebSearchProviderID = "web_search_generic"

// skipSentinel is the literal operators type to decline supplying
// credentials interactively (spec §4.5).
const skipSentinel = "SKIP"

// ResolveCredentials runs the credential handshake for each recommended
// provider (spec §4.5). In interactive mode, an unconfigured provider is
// prompted for on in/out; in non-interactive (evaluation) mode it is simply
// skipped. If every recommended provider ends up skipped, the generic
// web-search provider is added to ReadyProviders so the tool agent always
// has something to call.
func ResolveCredentials(registry *Registry, providers []string, interactive bool, in io.Reader, out io.Writer, masker *masking.Service) HandshakeResult {
	result := HandshakeResult{}
	scanner := bufio.NewScanner(in)

	for _, id := range providers {
		if id == GenericWebSearchProviderID || registry.Ready(id) {
			result.ReadyProviders = append(result.ReadyProviders, id)
			continue
		}

		if !interactive {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		if promptForCredentials(registry, id, scanner, out, masker) {
			result.ReadyProviders = append(result.ReadyProviders, id)
		} else {
			result.Skipped = append(result.Skipped, id)
		}
	}

	if len(result.ReadyProviders) == 0 {
		result.ReadyProviders = append(result.ReadyProviders, GenericWebSearchProviderID)
	}

	return result
}

// promptForCredentials prompts the operator by name for the missing fields
// of provider id, naming its category, and accepts either a JSON payload of
// field->value or the literal SKIP. Returns true when the provider became
// ready.
func promptForCredentials(registry *Registry, id string, scanner *bufio.Scanner, out io.Writer, masker *masking.Service) bool {
	p, ok := registry.Provider(id)
	if !ok {
		return false
	}
	missing := registry.MissingFields(id)

	fmt.Fprintf(out, "Provider %q (category: %s) needs credentials: %s\n", id, p.Category, strings.Join(missing, ", "))
	fmt.Fprintf(out, "Enter a JSON object ({%q: \"...\"}) or SKIP: ", missing[0])

	if !scanner.Scan() {
		return false
	}
	line := strings.TrimSpace(scanner.Text())
	if strings.EqualFold(line, skipSentinel) || line == "" {
		return false
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		slog.Warn("tools: could not parse credential payload, skipping provider", "provider", id)
		return false
	}

	if err := registry.SaveCredential(id, fields); err != nil {
		slog.Error("tools: failed to persist credentials", "provider", id, "error", err)
		return false
	}

	logFields := make(map[string]string, len(fields))
	for k, v := range fields {
		logFields[k] = masker.MaskCredential(v)
	}
	slog.Info("tools: credentials accepted", "provider", id, "fields", logFields)

	return len(registry.MissingFields(id)) == 0
}
