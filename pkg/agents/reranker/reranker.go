// Package reranker implements the optional multi-candidate synthesis stage
// (spec §4.12, C11-reranker): generate N differently-shaped answer
// candidates, score each, and return the best. It is only invoked when the
// orchestrator's ENABLE_RERANKER flag is set; disabled, exactly one
// synthesis call is made and this package is never reached.
package reranker

import (
	"context"
	"sort"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/verifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// DefaultCandidates is the number of candidates generated when the caller
// does not request a different count (spec §4.12: n=3).
const DefaultCandidates = 3

// variations are the prompt suffixes used to elicit differently-shaped
// candidates from the synthesizer (spec §4.10's variation parameter).
var variations = []string{
	"",
	"Answer concisely in three lines.",
	"Answer with bullet points.",
	"Answer in a single short paragraph.",
	"Lead with the single most important figure, then explain.",
}

// minWords and maxWords bound the length-penalty sweet spot (spec §4.12:
// "length penalty favors 50-400 word answers, decays outside").
const (
	minWords = 50
	maxWords = 400
)

// Synthesizer is the narrow interface the reranker needs to generate
// candidates.
type Synthesizer interface {
	Synthesize(ctx context.Context, internal []domain.InternalFact, external []domain.ExternalFact, memory []domain.MemoryFact, question, variation string) string
}

// Reranker generates N candidate answers and picks the best by a weighted
// blend of verifier confidence, embedding similarity to the query, and a
// length penalty (spec §4.12).
type Reranker struct {
	Synthesizer Synthesizer
	Verifier    *verifier.Verifier
	Embedder    retrieval.Embedder
	N           int
}

// New creates a Reranker. A non-positive n falls back to DefaultCandidates.
func New(synth Synthesizer, v *verifier.Verifier, embedder retrieval.Embedder, n int) *Reranker {
	if n <= 0 {
		n = DefaultCandidates
	}
	return &Reranker{Synthesizer: synth, Verifier: v, Embedder: embedder, N: n}
}

// Candidate is one generated answer plus the score it was ranked by.
type Candidate struct {
	Answer     string
	Confidence float64
	Score      float64
}

// GenerateCandidates calls the synthesizer n times with different variation
// strings, returning one candidate string per call (spec §4.12).
func (r *Reranker) GenerateCandidates(ctx context.Context, query string, internal []domain.InternalFact, external []domain.ExternalFact, memory []domain.MemoryFact) []string {
	n := r.N
	if n > len(variations) {
		n = len(variations)
	}
	candidates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		answer := r.Synthesizer.Synthesize(ctx, internal, external, memory, query, variations[i])
		if strings.TrimSpace(answer) == "" {
			continue
		}
		candidates = append(candidates, answer)
	}
	return candidates
}

// Rank scores every candidate and returns the best one plus its
// verifier confidence, so the caller never needs to re-run verification.
// Ties break by higher verifier confidence (spec §4.12). provenanceFor must
// build the provenance list that would result from synthesizing with
// candidate c, so each candidate is verified against its own evidence.
func (r *Reranker) Rank(
	ctx context.Context,
	query string,
	candidates []string,
	provenance []domain.ProvenanceEntry,
	partials []domain.PartialAnswer,
	external []domain.ToolSnippet,
	docPublishedAt int64,
) Candidate {
	scored := make([]Candidate, 0, len(candidates))
	queryVec, haveQueryVec := r.Embedder.Embed(ctx, query)

	for _, c := range candidates {
		verdict := r.Verifier.Verify(c, provenance, partials, external, docPublishedAt)

		embedSim := 0.0
		if haveQueryVec {
			if answerVec, ok := r.Embedder.Embed(ctx, c); ok {
				embedSim = retrieval.Cosine(queryVec, answerVec)
			}
		}

		score := 0.5*verdict.Confidence + 0.3*embedSim + 0.2*lengthPenalty(c)
		scored = append(scored, Candidate{Answer: c, Confidence: verdict.Confidence, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Confidence > scored[j].Confidence
	})

	if len(scored) == 0 {
		return Candidate{}
	}
	return scored[0]
}

// lengthPenalty favors answers of 50-400 words, decaying linearly outside
// that range (spec §4.12).
func lengthPenalty(answer string) float64 {
	n := len(strings.Fields(answer))
	if n >= minWords && n <= maxWords {
		return 1.0
	}
	if n < minWords {
		if n == 0 {
			return 0
		}
		return float64(n) / float64(minWords)
	}
	over := n - maxWords
	penalty := 1.0 - float64(over)/float64(maxWords)
	if penalty < 0 {
		return 0
	}
	return penalty
}
