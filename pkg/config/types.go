// Package config loads and validates the orchestrator's YAML configuration:
// environment toggles, verifier weights, tool categories, and the
// missing-slot heuristic table. It follows the teacher's loader shape —
// expand env vars, parse YAML, merge defaults with dario.cat/mergo, validate
// with go-playground/validator — adapted from a multi-file chain/agent
// config to the single orchestrator.yaml this spec needs.
package config

import "time"

// ToolCategory is one of the fixed enumerated tool-category values (spec §4.5).
type ToolCategory string

const (
	CategoryGeneric    ToolCategory = "generic"
	CategoryRegulatory ToolCategory = "regulatory"
	CategoryFinancials ToolCategory = "financials"
	CategoryMarket     ToolCategory = "market"
	CategoryMacro      ToolCategory = "macro"
	CategoryCredit     ToolCategory = "credit"
	CategoryNews       ToolCategory = "news"
)

// ValidCategories lists every category the tool knowledge base recognizes.
var ValidCategories = []ToolCategory{
	CategoryGeneric, CategoryRegulatory, CategoryFinancials,
	CategoryMarket, CategoryMacro, CategoryCredit, CategoryNews,
}

// SourceWeights gives the per-category source-quality weight used by the
// verifier's source_quality_score term (spec §4.11). Exposed as
// configuration per spec §9's open question about the credit/macro weights.
type SourceWeights struct {
	Internal   float64 `yaml:"internal"`
	Regulatory float64 `yaml:"regulatory"`
	Credit     float64 `yaml:"credit"`
	Financials float64 `yaml:"financials"`
	Macro      float64 `yaml:"macro"`
	Market     float64 `yaml:"market"`
	News       float64 `yaml:"news"`
	Generic    float64 `yaml:"generic"`
}

// VerifierWeights gives the blend weights for the four confidence terms
// (spec §4.11). They must sum to 1.0; Validate checks this.
type VerifierWeights struct {
	Similarity  float64 `yaml:"similarity" validate:"gte=0,lte=1"`
	SourceQual  float64 `yaml:"source_quality" validate:"gte=0,lte=1"`
	Coverage    float64 `yaml:"coverage" validate:"gte=0,lte=1"`
	Consistency float64 `yaml:"consistency" validate:"gte=0,lte=1"`
}

// Timeouts gives the per-stage and global timeout budget (spec §5).
type Timeouts struct {
	RetrieverStreaming time.Duration `yaml:"retriever_streaming"`
	ToolCallPerRequest time.Duration `yaml:"tool_call_per_request"`
	ToolAgentAggregate time.Duration `yaml:"tool_agent_aggregate"`
	Overall            time.Duration `yaml:"overall"`
}

// Slot is one entry in the missing-slot heuristic table (spec §4.13).
type Slot struct {
	Name            string   `yaml:"name" validate:"required"`
	TriggerPhrases  []string `yaml:"trigger_phrases" validate:"required,min=1"`
}

// Retention controls the background memory-retention sweeper (adapted from
// the teacher's session/event retention service to this project's flat-file
// memory store).
type Retention struct {
	MaxEntryAge     time.Duration `yaml:"max_entry_age"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// Defaults mirrors the env-var-overridable knobs from spec §6/§8.
type Defaults struct {
	EnableToolAgent bool `yaml:"enable_tool_agent"`
	EnableReranker  bool `yaml:"enable_reranker"`
	MaxPages        int  `yaml:"max_pages"`
	ChunkSize       int  `yaml:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap"`
	MaxMemoryToLoad int  `yaml:"max_memory_to_load"`
	SaveMemory      bool `yaml:"save_memory"`
	Debug           bool `yaml:"debug"`
}

// Config is the fully loaded, validated orchestrator configuration.
type Config struct {
	Defaults        Defaults        `yaml:"defaults"`
	Timeouts        Timeouts        `yaml:"timeouts"`
	SourceWeights   SourceWeights   `yaml:"source_weights"`
	VerifierWeights VerifierWeights `yaml:"verifier_weights"`
	Slots           []Slot          `yaml:"slots"`
	Retention       Retention       `yaml:"retention"`

	configDir string
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }
