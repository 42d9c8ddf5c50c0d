package config

import "time"

// DefaultConfig returns the built-in configuration used when no
// orchestrator.yaml is present, and as the base that a user config is
// merged over (spec §9: defaults answer the open questions about exact
// weight values).
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			EnableToolAgent: true,
			EnableReranker:  false,
			MaxPages:        20,
			ChunkSize:       1500,
			ChunkOverlap:    200,
			MaxMemoryToLoad: 5,
			SaveMemory:      true,
			Debug:           false,
		},
		Timeouts: Timeouts{
			RetrieverStreaming: 45 * time.Second,
			ToolCallPerRequest: 10 * time.Second,
			ToolAgentAggregate: 15 * time.Second,
			Overall:            30 * time.Second,
		},
		SourceWeights: SourceWeights{
			Internal:   1.0,
			Regulatory: 0.9,
			Credit:     0.85,
			Macro:      0.85,
			Financials: 0.8,
			Market:     0.8,
			News:       0.7,
			Generic:    0.5,
		},
		VerifierWeights: VerifierWeights{
			Similarity:  0.4,
			SourceQual:  0.3,
			Coverage:    0.2,
			Consistency: 0.1,
		},
		Slots: defaultSlots(),
		Retention: Retention{
			MaxEntryAge:   365 * 24 * time.Hour,
			SweepInterval: 24 * time.Hour,
		},
	}
}

// defaultSlots gives the missing-slot heuristic's built-in trigger-phrase
// table (spec §4.13): a question mentioning one of these phrases but whose
// internal evidence is weak is a candidate for tool-assisted completion.
func defaultSlots() []Slot {
	return []Slot{
		{
			Name:           "market_capitalization",
			TriggerPhrases: []string{"market cap", "market capitalization"},
		},
		{
			Name:           "revenue",
			TriggerPhrases: []string{"revenue", "total revenue"},
		},
		{
			Name:           "net_income",
			TriggerPhrases: []string{"net income", "profit"},
		},
		{
			Name:           "current_rate",
			TriggerPhrases: []string{"current rate", "today's rate", "latest rate", "as of today"},
		},
		{
			Name:           "recent_regulatory_change",
			TriggerPhrases: []string{"recent change", "new regulation", "latest circular", "updated guideline"},
		},
		{
			Name:           "market_price",
			TriggerPhrases: []string{"current price", "stock price", "share price", "trading at"},
		},
		{
			Name:           "macro_indicator",
			TriggerPhrases: []string{"inflation rate", "gdp growth", "repo rate", "unemployment rate"},
		},
		{
			Name:           "credit_rating",
			TriggerPhrases: []string{"credit rating", "rating outlook", "downgraded", "upgraded"},
		},
		{
			Name:           "latest_news",
			TriggerPhrases: []string{"latest news", "recent news", "announced today"},
		},
	}
}
