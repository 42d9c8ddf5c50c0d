package config

import (
	"fmt"

	"dario.cat/mergo"
)

// mergeOverUserConfig merges a partially-specified user config over the
// built-in defaults: any zero-valued field in user is filled from base,
// while fields the user did set take precedence. Slices (e.g. Slots) are
// replaced wholesale rather than appended, matching the teacher's
// merge-with-override semantics for list-valued config sections.
func mergeOverUserConfig(base *Config, user *Config) (*Config, error) {
	merged := *base

	if len(user.Slots) > 0 {
		merged.Slots = user.Slots
	}

	if err := mergo.Merge(&merged, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge user config over defaults: %w", err)
	}

	if len(user.Slots) > 0 {
		merged.Slots = user.Slots
	}

	return &merged, nil
}
