package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

func testConfig() *config.Config {
	return config.DefaultConfig()
}

func TestVerify_HighConfidenceWellSupportedAnswer(t *testing.T) {
	v := New(testConfig())
	answer := "Revenue was 500 crore this quarter."
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "Revenue was 500 crore this quarter.", Similarity: 0.9},
	}
	partials := []domain.PartialAnswer{{Text: "Revenue was 500 crore this quarter.", Similarity: 0.9}}

	result := v.Verify(answer, provenance, partials, nil, 0)

	assert.Greater(t, result.Confidence, 0.6)
	assert.NotContains(t, result.Flags, FlagLowEvidenceCoverage)
}

func TestVerify_LowCoverageFlagsWhenUnsupported(t *testing.T) {
	v := New(testConfig())
	answer := "The company plans to expand into quantum computing markets next year."
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "Revenue was 500 crore this quarter.", Similarity: 0.9},
	}
	partials := []domain.PartialAnswer{{Text: "Revenue was 500 crore this quarter.", Similarity: 0.9}}

	result := v.Verify(answer, provenance, partials, nil, 0)

	assert.Contains(t, result.Flags, FlagLowEvidenceCoverage)
}

func TestVerify_OnlyGenericWebFlag(t *testing.T) {
	v := New(testConfig())
	external := []domain.ToolSnippet{
		{Tool: "web_search_generic", Category: "generic", Text: "Some generic web result.", FetchedAt: time.Now().Unix()},
	}
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceExternal, Source: "https://example.com", Category: "generic", Text: "Some generic web result."},
	}

	result := v.Verify("answer text", provenance, nil, external, 0)

	assert.Contains(t, result.Flags, FlagOnlyGenericWeb)
}

func TestVerify_NoOnlyGenericWebFlagWhenHighQualitySourcePresent(t *testing.T) {
	v := New(testConfig())
	external := []domain.ToolSnippet{
		{Tool: "rating_agency_api", Category: "credit", Text: "Credit rating upgraded.", FetchedAt: time.Now().Unix()},
	}
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceExternal, Source: "https://example.com", Category: "credit", Text: "Credit rating upgraded."},
	}

	result := v.Verify("answer text", provenance, nil, external, 0)

	assert.NotContains(t, result.Flags, FlagOnlyGenericWeb)
}

func TestVerify_NumericContradictionFlag(t *testing.T) {
	v := New(testConfig())
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "revenue 500 crore this quarter."},
		{Type: domain.ProvenanceExternal, Source: "https://example.com", Category: "financials", Text: "revenue 700 crore this quarter."},
	}

	result := v.Verify("revenue was reported differently across sources.", provenance, nil, nil, 0)

	assert.Contains(t, result.Flags, FlagNumericContradiction)
}

func TestVerify_OutdatedExternalDataFlag(t *testing.T) {
	v := New(testConfig())
	docPublished := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Unix()
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceExternal, Source: "https://example.com", Category: "news", Text: "Reported on 2020-01-01 that rates were low."},
	}

	result := v.Verify("rates were low according to old news.", provenance, nil, nil, docPublished)

	assert.Contains(t, result.Flags, FlagOutdatedExternalData)
}

func TestVerify_PotentialHallucinationFlag(t *testing.T) {
	v := New(testConfig())
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "Revenue was 500 crore this quarter."},
	}

	result := v.Verify("Net income was 999999 crore, an unprecedented figure.", provenance, nil, nil, 0)

	assert.Contains(t, result.Flags, FlagPotentialHallucination)
}

func TestVerify_ConfidenceClampedToUnitInterval(t *testing.T) {
	v := New(testConfig())
	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "Revenue was 500 crore this quarter.", Similarity: 1.0},
	}
	partials := []domain.PartialAnswer{{Text: "x", Similarity: 1.0}}

	result := v.Verify("Revenue was 500 crore this quarter.", provenance, partials, nil, 0)

	require.GreaterOrEqual(t, result.Confidence, 0.0)
	require.LessOrEqual(t, result.Confidence, 1.0)
}

func TestVerify_EmptyProvenanceYieldsZeroSourceQuality(t *testing.T) {
	v := New(testConfig())

	result := v.Verify("some answer", nil, nil, nil, 0)

	assert.GreaterOrEqual(t, result.Confidence, 0.0)
}
