package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

func TestClassifyChunks_InternalSufficientOnHighOverlap(t *testing.T) {
	chunks := []domain.Chunk{
		{Index: 0, Text: "The company reported total revenue of 500 crore and net income of 80 crore for the quarter."},
		{Index: 1, Text: "Unrelated filler text about office furniture procurement."},
	}

	decision := ClassifyChunks("what was the total revenue and net income for the quarter", chunks)

	assert.True(t, decision.InternalSufficient)
	assert.False(t, decision.ExternalNeeded)
	assert.GreaterOrEqual(t, decision.MaxSimilarity, Threshold)
}

func TestClassifyChunks_ExternalNeededOnLowOverlap(t *testing.T) {
	chunks := []domain.Chunk{
		{Index: 0, Text: "Unrelated filler text about office furniture procurement policies and expense reporting."},
	}

	decision := ClassifyChunks("what is the current repo rate set by the central bank", chunks)

	assert.False(t, decision.InternalSufficient)
	assert.True(t, decision.ExternalNeeded)
	assert.Less(t, decision.MaxSimilarity, Threshold)
}

func TestClassifyChunks_EmptyChunksAreExternalNeeded(t *testing.T) {
	decision := ClassifyChunks("any question", nil)

	assert.False(t, decision.InternalSufficient)
	assert.True(t, decision.ExternalNeeded)
	assert.Equal(t, 0.0, decision.MaxSimilarity)
}

func TestClassify_UnreadablePDFRecommendsExternal(t *testing.T) {
	c := New(20, 1500, 200)

	decision := c.Classify("any question", "/nonexistent/path/does-not-exist.pdf")

	assert.False(t, decision.InternalSufficient)
	assert.True(t, decision.ExternalNeeded)
	assert.Contains(t, decision.Reason, "could not be read")
}
