// Package tools implements the conceptual-tool knowledge base, the
// LLM-assisted planner, the credential handshake, and the per-provider
// executor (spec §4.5, §4.6 — C5/C6).
package tools

import "github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"

// PlanResult is the planner's output: which category the query falls into
// and which configured providers it recommends calling.
type PlanResult struct {
	Category             config.ToolCategory `json:"category"`
	RecommendedProviders []string            `json:"recommended_providers"`
	Reason                string              `json:"reason"`
}

// fallbackPlan is returned whenever the planner's LLM output cannot be
// parsed (spec §4.5): generic category, serpapi if configured else the
// generic web-search fallback, reason "fallback".
func fallbackPlan(serpAPIConfigured bool) PlanResult {
	provider := "web_search_generic"
	if serpAPIConfigured {
		provider = "serpapi"
	}
	return PlanResult{
		Category:             config.CategoryGeneric,
		RecommendedProviders: []string{provider},
		Reason:               "fallback",
	}
}

// HandshakeResult is the outcome of resolving credentials for a plan's
// recommended providers.
type HandshakeResult struct {
	ReadyProviders []string
	Skipped        []string
}
