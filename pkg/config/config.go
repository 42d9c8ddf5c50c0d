package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads an orchestrator.yaml at path, expands environment variables in
// it, merges it over DefaultConfig(), applies any ENV_VAR overrides, and
// validates the result. A missing file is not an error: Load falls back to
// DefaultConfig() with env overrides applied, since every field has a
// sensible built-in default (spec §6/§8).
//
// Load also best-effort loads a sibling .env file so local development
// credentials can be supplied without exporting them in the shell; a
// missing .env is silently ignored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	base := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(base)
			if err := Validate(base); err != nil {
				return nil, err
			}
			return base, nil
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(data)

	var user Config
	if err := yaml.Unmarshal(expanded, &user); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	merged, err := mergeOverUserConfig(base, &user)
	if err != nil {
		return nil, NewLoadError(path, err)
	}
	merged.configDir = dirOf(path)

	applyEnvOverrides(merged)

	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Validate checks struct tags via go-playground/validator and the
// cross-field invariant that the verifier's four blend weights sum to 1.0
// (spec §4.11).
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	sum := c.VerifierWeights.Similarity + c.VerifierWeights.SourceQual +
		c.VerifierWeights.Coverage + c.VerifierWeights.Consistency
	if math.Abs(sum-1.0) > 1e-6 {
		return NewValidationError("verifier_weights", "", "", fmt.Errorf("%w: got %.4f", ErrInvalidWeights, sum))
	}

	for _, s := range c.Slots {
		if len(s.TriggerPhrases) == 0 {
			return NewValidationError("slot", s.Name, "trigger_phrases", ErrMissingRequiredField)
		}
	}

	return nil
}

// applyEnvOverrides mirrors the teacher's env-driven feature-flag pattern:
// a fixed set of environment variables can always override whatever the
// YAML/defaults produced (spec §6/§8), so deployment tooling never has to
// edit the file to flip a flag.
func applyEnvOverrides(c *Config) {
	if v, ok := boolEnv("ENABLE_TOOL_AGENT"); ok {
		c.Defaults.EnableToolAgent = v
	}
	if v, ok := boolEnv("ENABLE_RERANKER"); ok {
		c.Defaults.EnableReranker = v
	}
	if v, ok := intEnv("MAX_PAGES"); ok {
		c.Defaults.MaxPages = v
	}
	if v, ok := intEnv("CHUNK_SIZE"); ok {
		c.Defaults.ChunkSize = v
	}
	if v, ok := intEnv("CHUNK_OVERLAP"); ok {
		c.Defaults.ChunkOverlap = v
	}
	if v, ok := intEnv("MAX_MEMORY_TO_LOAD"); ok {
		c.Defaults.MaxMemoryToLoad = v
	}
	if v, ok := boolEnv("SAVE_MEMORY"); ok {
		c.Defaults.SaveMemory = v
	}
	if v, ok := boolEnv("DEBUG"); ok {
		c.Defaults.Debug = v
	}
}

func boolEnv(name string) (bool, bool) {
	raw, present := os.LookupEnv(name)
	if !present || strings.TrimSpace(raw) == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func intEnv(name string) (int, bool) {
	raw, present := os.LookupEnv(name)
	if !present || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// WeightForInternal returns the source-quality weight for internal facts
// (those drawn from the PDF itself, never from a tool category).
func (c *Config) WeightForInternal() float64 {
	return c.SourceWeights.Internal
}

// WeightFor returns the source-quality weight for an external tool
// category, defaulting to the generic weight for an unrecognized category.
func (c *Config) WeightFor(category ToolCategory) float64 {
	switch category {
	case CategoryRegulatory:
		return c.SourceWeights.Regulatory
	case CategoryCredit:
		return c.SourceWeights.Credit
	case CategoryFinancials:
		return c.SourceWeights.Financials
	case CategoryMacro:
		return c.SourceWeights.Macro
	case CategoryMarket:
		return c.SourceWeights.Market
	case CategoryNews:
		return c.SourceWeights.News
	default:
		return c.SourceWeights.Generic
	}
}

// MatchingSlots returns every slot whose trigger phrases appear (as a
// case-insensitive substring) in query — the missing-slot heuristic lookup
// used by the orchestrator (spec §4.13).
func (c *Config) MatchingSlots(query string) []Slot {
	lower := strings.ToLower(query)
	var matches []Slot
	for _, s := range c.Slots {
		for _, phrase := range s.TriggerPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				matches = append(matches, s)
				break
			}
		}
	}
	return matches
}
