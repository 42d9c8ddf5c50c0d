package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/classifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/retriever"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/synthesizer"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/verifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/memory"
)

type stubLLM struct {
	blocking string
	pieces   []string
}

func (s *stubLLM) Call(context.Context, string, llmclient.Options) string { return s.blocking }

func (s *stubLLM) Stream(ctx context.Context, _ string, _ llmclient.Options) (<-chan string, <-chan error) {
	out := make(chan string, len(s.pieces))
	errs := make(chan error, 1)
	for _, p := range s.pieces {
		out <- p
	}
	close(out)
	close(errs)
	return out, errs
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float64, bool) { return nil, false }

func testDeps(t *testing.T, saveMemory bool) Deps {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Defaults.EnableToolAgent = false
	cfg.Defaults.SaveMemory = saveMemory
	cfg.Timeouts.Overall = 5 * time.Second
	cfg.Timeouts.RetrieverStreaming = 2 * time.Second

	return Deps{
		Config:      cfg,
		Classifier:  classifier.New(cfg.Defaults.MaxPages, cfg.Defaults.ChunkSize, cfg.Defaults.ChunkOverlap),
		Retriever:   retriever.New(stubEmbedder{}, &stubLLM{}, "m", cfg.Defaults.MaxPages, cfg.Defaults.ChunkSize, cfg.Defaults.ChunkOverlap, 5),
		ToolAgent:   nil,
		Synthesizer: synthesizer.New(&stubLLM{blocking: "System could not retrieve sufficient evidence for this query."}, "m"),
		Verifier:    verifier.New(cfg),
		Reranker:    nil,
		Memory:      memory.NewStore(t.TempDir()),
		Embedder:    stubEmbedder{},
		EmbedModel:  "m",
	}
}

func TestRun_NoEvidenceYieldsFailsafe(t *testing.T) {
	o := New(testDeps(t, true))

	result := o.Run(context.Background(), "what is the current market cap", "/nonexistent/does-not-exist.pdf", false)

	assert.Equal(t, domain.FailsafeAnswer, result.Answer)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Provenance)
	assert.Empty(t, result.Flags)
	require.NotEmpty(t, result.Trace)
}

func TestRun_PersistsMemoryEvenWithNoEvidence(t *testing.T) {
	deps := testDeps(t, true)
	o := New(deps)

	o.Run(context.Background(), "any question", "/nonexistent/does-not-exist.pdf", false)

	entries := deps.Memory.Load("/nonexistent/does-not-exist.pdf")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.FailsafeAnswer, entries[0].Answer)
}

func TestRun_SkipsPersistenceWhenSaveMemoryDisabled(t *testing.T) {
	deps := testDeps(t, false)
	o := New(deps)

	o.Run(context.Background(), "any question", "/nonexistent/does-not-exist.pdf", false)

	entries := deps.Memory.Load("/nonexistent/does-not-exist.pdf")
	assert.Empty(t, entries)
}

func TestRunStream_EmitsExactlyOneFinalEventAndItIsLast(t *testing.T) {
	o := New(testDeps(t, true))

	events := o.RunStream(context.Background(), "what is the revenue", "/nonexistent/does-not-exist.pdf", 5, 5)

	var seen []domain.StreamEvent
	for ev := range events {
		seen = append(seen, ev)
	}

	require.NotEmpty(t, seen)
	finalCount := 0
	for i, ev := range seen {
		if ev.Type == domain.StreamFinal {
			finalCount++
			assert.Equal(t, len(seen)-1, i, "final event must be the last event")
		}
	}
	assert.Equal(t, 1, finalCount)
	assert.Equal(t, domain.FailsafeAnswer, seen[len(seen)-1].Answer)
}

func TestRunStream_NeverPanics(t *testing.T) {
	deps := testDeps(t, true)
	deps.Retriever = nil // deliberately broken dependency
	o := New(deps)

	assert.NotPanics(t, func() {
		events := o.RunStream(context.Background(), "q", "/nonexistent/does-not-exist.pdf", 5, 5)
		for range events {
		}
	})
}

func TestMissingSlots_DetectsUnmentionedRequestedSlot(t *testing.T) {
	cfg := config.DefaultConfig()
	internal := []domain.InternalFact{{Text: "2024 revenue: $100 billion"}}

	missing := missingSlots(cfg, "what is the current market cap and how does it compare to 2024 revenue?", internal)

	require.Len(t, missing, 1)
	assert.Equal(t, "market_capitalization", missing[0].Name)
}

func TestMissingSlots_NoneRequestedWhenQueryMatchesNoSlot(t *testing.T) {
	cfg := config.DefaultConfig()
	missing := missingSlots(cfg, "describe the company's history", nil)
	assert.Empty(t, missing)
}

func TestMissingSlots_NotMissingWhenInternalFactsCoverIt(t *testing.T) {
	cfg := config.DefaultConfig()
	internal := []domain.InternalFact{{Text: "total revenue was $100 billion in 2024"}}

	missing := missingSlots(cfg, "what was total revenue?", internal)

	assert.Empty(t, missing)
}

func TestBuildProvenance_OneEntryPerFactInOrder(t *testing.T) {
	internal := []domain.InternalFact{{Text: "fact one", Page: 2, Similarity: 0.8}}
	external := []domain.ExternalFact{{Text: "fact two", URL: "https://example.com", Tool: "serpapi", Category: "market"}}

	provenance := buildProvenance("/abs/doc.pdf", internal, external)

	require.Len(t, provenance, 2)
	assert.Equal(t, domain.ProvenanceInternal, provenance[0].Type)
	assert.Equal(t, "/abs/doc.pdf", provenance[0].Source)
	assert.Equal(t, 2, provenance[0].Page)
	assert.Equal(t, domain.ProvenanceExternal, provenance[1].Type)
	assert.Equal(t, "https://example.com", provenance[1].Source)
	assert.Equal(t, "serpapi", provenance[1].Tool)
}
