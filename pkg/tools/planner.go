package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
)

// Planner chooses a tool category and a set of recommended providers for a
// query (spec §4.5).
type Planner struct {
	llm      *llmclient.Client
	registry *Registry
	model    string
}

// NewPlanner creates a planner backed by llm, using registry to enumerate
// configured providers for the prompt.
func NewPlanner(llm *llmclient.Client, registry *Registry, model string) *Planner {
	return &Planner{llm: llm, registry: registry, model: model}
}

// Plan builds a prompt describing the BFSI research role, the fixed
// category enumeration, and the configured providers, then asks the model
// for a single JSON object with exactly {category, recommended_providers,
// reason}. Any parse failure returns the documented fallback plan rather
// than propagating an error (spec §4.5).
func (p *Planner) Plan(ctx context.Context, query string) PlanResult {
	prompt := p.buildPrompt(query)
	raw := p.llm.Call(ctx, prompt, llmclient.Options{Model: p.model})

	plan, ok := parsePlanJSON(raw)
	if !ok {
		return fallbackPlan(p.serpAPIConfigured())
	}
	if !isValidCategory(plan.Category) {
		return fallbackPlan(p.serpAPIConfigured())
	}
	return plan
}

func (p *Planner) serpAPIConfigured() bool {
	_, ok := p.registry.Provider("serpapi")
	return ok
}

func (p *Planner) buildPrompt(query string) string {
	var categories []string
	for _, c := range config.ValidCategories {
		categories = append(categories, string(c))
	}
	providers := p.registry.ConfiguredProviderIDs()

	var b strings.Builder
	b.WriteString("You are a BFSI (banking, financial services, insurance) research planner.\n")
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString("\nConfigured providers: ")
	if len(providers) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(providers, ", "))
	}
	b.WriteString("\n\nGiven the question below, return a single JSON object with exactly these fields: ")
	b.WriteString(`"category" (one of the categories above), "recommended_providers" (array of provider ids, may be empty), "reason" (short string).`)
	b.WriteString("\nAn empty recommended_providers array means the internal document likely already answers this.")
	fmt.Fprintf(&b, "\n\nQUESTION: %s\nJSON:", query)
	return b.String()
}

// parsePlanJSON extracts the first top-level JSON object from raw and
// decodes it into a PlanResult. The model is not guaranteed to emit only
// JSON, so this scans for the outermost braces rather than requiring the
// whole response to parse.
func parsePlanJSON(raw string) (PlanResult, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return PlanResult{}, false
	}

	var plan PlanResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &plan); err != nil {
		return PlanResult{}, false
	}
	return plan, true
}

func isValidCategory(c config.ToolCategory) bool {
	for _, v := range config.ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}
