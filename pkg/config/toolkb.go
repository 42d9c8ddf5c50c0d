package config

// ToolKBEntry is one conceptual tool in the static knowledge base (spec
// §4.5): a category of external knowledge, independent of whether any
// concrete provider is actually configured for it.
type ToolKBEntry struct {
	Category         ToolCategory
	Purpose          string
	ExampleProviders []string
}

// ToolKnowledgeBase is the fixed catalog of conceptual tools, keyed by a
// short conceptual-tool identifier.
var ToolKnowledgeBase = map[string]ToolKBEntry{
	"web_search": {
		Category:         CategoryGeneric,
		Purpose:          "General-purpose web search for anything not covered by a more specific category.",
		ExampleProviders: []string{"serpapi", "web_search_generic"},
	},
	"regulatory_lookup": {
		Category:         CategoryRegulatory,
		Purpose:          "Lookup of current regulatory circulars, guidelines, and compliance notices.",
		ExampleProviders: []string{"rbi_circulars", "sebi_filings"},
	},
	"financial_statements": {
		Category:         CategoryFinancials,
		Purpose:          "Retrieval of company financial statements and filings not present in the source PDF.",
		ExampleProviders: []string{"company_filings_api"},
	},
	"market_data": {
		Category:         CategoryMarket,
		Purpose:          "Live or recent market prices, indices, and trading data.",
		ExampleProviders: []string{"market_data_api"},
	},
	"macro_indicators": {
		Category:         CategoryMacro,
		Purpose:          "Macroeconomic indicators such as inflation, GDP growth, and policy rates.",
		ExampleProviders: []string{"macro_stats_api"},
	},
	"credit_ratings": {
		Category:         CategoryCredit,
		Purpose:          "Credit rating actions and outlooks from rating agencies.",
		ExampleProviders: []string{"rating_agency_api"},
	},
	"news": {
		Category:         CategoryNews,
		Purpose:          "Recent news coverage relevant to the query.",
		ExampleProviders: []string{"news_api", "web_search_generic"},
	},
}

// ProviderConfig describes one configured tool provider, loaded from
// tool_config.json (spec §4.5/§6).
type ProviderConfig struct {
	Category          ToolCategory `json:"category" validate:"required"`
	EndpointTemplate  string       `json:"endpoint_template" validate:"required"`
	RequiredFields    []string     `json:"required_fields"`
}

// ToolConfigFile is the top-level shape of tool_config.json.
type ToolConfigFile struct {
	Providers map[string]ProviderConfig `json:"providers" validate:"dive"`
}
