package reranker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/verifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

type fakeSynthesizer struct {
	byVariation map[string]string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ []domain.InternalFact, _ []domain.ExternalFact, _ []domain.MemoryFact, _ string, variation string) string {
	return f.byVariation[variation]
}

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, bool) {
	v, ok := f.vectors[text]
	return v, ok
}

func TestGenerateCandidates_SkipsEmptyAndCapsAtN(t *testing.T) {
	synth := &fakeSynthesizer{byVariation: map[string]string{
		"":                                 "short answer one",
		"Answer concisely in three lines.": "",
		"Answer with bullet points.":       "bullet answer two",
	}}
	r := New(synth, verifier.New(config.DefaultConfig()), &fakeEmbedder{}, 3)

	candidates := r.GenerateCandidates(context.Background(), "q", nil, nil, nil)

	require.Len(t, candidates, 2)
	assert.Equal(t, "short answer one", candidates[0])
	assert.Equal(t, "bullet answer two", candidates[1])
}

func TestRank_PicksHigherConfidenceCandidate(t *testing.T) {
	v := verifier.New(config.DefaultConfig())
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"query":     {1, 0},
		"good":      {1, 0},
		"unrelated": {0, 1},
	}}
	r := New(&fakeSynthesizer{}, v, embedder, 2)

	provenance := []domain.ProvenanceEntry{
		{Type: domain.ProvenanceInternal, Source: "/doc.pdf", Text: "good evidence text", Similarity: 0.9},
	}
	partials := []domain.PartialAnswer{{Text: "good evidence text", Similarity: 0.9}}

	best := r.Rank(context.Background(), "query", []string{"good evidence text", "unrelated nonsense"}, provenance, partials, nil, 0)

	assert.Equal(t, "good evidence text", best.Answer)
}

func TestRank_NoCandidatesReturnsZeroValue(t *testing.T) {
	v := verifier.New(config.DefaultConfig())
	r := New(&fakeSynthesizer{}, v, &fakeEmbedder{}, 2)

	best := r.Rank(context.Background(), "query", nil, nil, nil, nil, 0)

	assert.Equal(t, Candidate{}, best)
}

func TestLengthPenalty_FavorsMidRangeAnswers(t *testing.T) {
	mid := strings.Repeat("word ", 100)
	short := "two words"
	long := strings.Repeat("word ", 1000)

	assert.Equal(t, 1.0, lengthPenalty(mid))
	assert.Less(t, lengthPenalty(short), 1.0)
	assert.Less(t, lengthPenalty(long), 1.0)
}
