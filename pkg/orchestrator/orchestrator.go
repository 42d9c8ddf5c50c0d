// Package orchestrator composes the classifier, retriever, tool agent,
// synthesizer, verifier, and optional reranker into the single
// question-answering pipeline described in spec §4.13 (C12). It owns the
// stage flags, the per-stage and global timeout discipline, the
// partial-external-completion heuristic, and the streaming event contract:
// exactly one "final" event per run, and never an unhandled panic escaping
// Run or RunStream.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pranshu-dhingra/bfsi-qa-core/internal/docload"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/classifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/reranker"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/retriever"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/synthesizer"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/toolagent"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/verifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/memory"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// PartialExternalCompletionFlag is appended by the orchestrator itself,
// never by the verifier (spec §4.11/§4.13).
const PartialExternalCompletionFlag = "PARTIAL_EXTERNAL_COMPLETION"

// Deps wires every collaborator the orchestrator composes. Reranker may be
// nil: when it is, exactly one synthesis call is made (spec §4.12).
type Deps struct {
	Config      *config.Config
	Classifier  *classifier.Classifier
	Retriever   *retriever.Retriever
	ToolAgent   *toolagent.Agent
	Synthesizer *synthesizer.Synthesizer
	Verifier    *verifier.Verifier
	Reranker    *reranker.Reranker
	Memory      *memory.Store
	Embedder    retrieval.Embedder
	EmbedModel  string
}

// Orchestrator runs one query end to end against one PDF.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator over deps.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Result is the blocking entry point's return shape (spec §4.13).
type Result struct {
	Answer     string                  `json:"answer"`
	Confidence float64                 `json:"confidence"`
	Provenance []domain.ProvenanceEntry `json:"provenance"`
	Flags      []string                `json:"flags"`
	Trace      []domain.TraceEvent     `json:"trace"`
}

// Run is the blocking entry point (spec §4.13): run(query, pdf_path,
// use_streaming=False). useStreaming only selects which LLM call shape the
// synthesizer uses internally; Run never exposes a stream of events to its
// caller. No unhandled panic escapes Run (spec §7).
func (o *Orchestrator) Run(ctx context.Context, query, pdfPath string, useStreaming bool) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: recovered from panic in Run", "panic", r)
			result = Result{Answer: domain.FailsafeAnswer, Confidence: 0, Provenance: []domain.ProvenanceEntry{}}
		}
	}()

	overallCtx, cancel := context.WithTimeout(ctx, o.deps.Config.Timeouts.Overall)
	defer cancel()

	noop := func(domain.StreamEvent) bool { return true }
	return o.runPipeline(overallCtx, query, pdfPath, 0, useStreaming, noop)
}

// RunStream is the generator entry point (spec §4.13): run_stream(query,
// pdf_path, max_chunks=5, timeout_sec=30). The returned channel obeys the
// streaming event contract (spec §3 invariant 1): zero or more log/token
// events, optionally one error event, then exactly one final event, and
// nothing after it. A safety wrapper guarantees the final event is emitted
// even if the pipeline panics or returns without one (spec §7/§9).
func (o *Orchestrator) RunStream(ctx context.Context, query, pdfPath string, maxChunks, timeoutSec int) <-chan domain.StreamEvent {
	timeout := o.deps.Config.Timeouts.Overall
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	overallCtx, cancel := context.WithTimeout(ctx, timeout)

	events := make(chan domain.StreamEvent, 64)

	go func() {
		defer cancel()
		defer close(events)

		finalSent := false

		// emit delivers ev unless a final event was already sent (spec §3
		// invariant 1: nothing follows final). It aborts only on the
		// caller's own context — never on the derived overall deadline —
		// so a timeout can still be followed by its failsafe final.
		emit := func(ev domain.StreamEvent) bool {
			if finalSent {
				return false
			}
			select {
			case events <- ev:
				if ev.Type == domain.StreamFinal {
					finalSent = true
				}
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("orchestrator: recovered from panic in RunStream", "panic", r)
				emit(domain.ErrorEvent("System encountered an internal error"))
			}
			if !finalSent {
				emit(domain.FinalEvent(domain.FailsafeAnswer, 0, nil, nil, nil))
			}
		}()

		result := o.runPipeline(overallCtx, query, pdfPath, maxChunks, true, emit)
		if !finalSent {
			emit(domain.FinalEvent(result.Answer, result.Confidence, result.Provenance, result.Flags, result.Trace))
		}
	}()

	return events
}

// traceBuilder accumulates stage trace events in pipeline order (spec §3,
// §5 ordering guarantee).
type traceBuilder struct {
	events []domain.TraceEvent
}

func (t *traceBuilder) record(agent string, status domain.TraceStatus, stageStart time.Time, extra map[string]any) {
	t.events = append(t.events, domain.TraceEvent{
		Agent:     agent,
		Status:    status,
		LatencyMS: time.Since(stageStart).Milliseconds(),
		Timestamp: time.Now().Unix(),
		Extra:     extra,
	})
}

// runPipeline executes the fixed DAG in order (spec §4.13) and returns the
// assembled Result. emit is called for log/token/error events as they
// occur; it is a no-op sink when called from the blocking Run path.
func (o *Orchestrator) runPipeline(ctx context.Context, query, pdfPath string, maxChunks int, streaming bool, emit func(domain.StreamEvent) bool) Result {
	cfg := o.deps.Config
	trace := &traceBuilder{}

	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		absPath = pdfPath
	}

	emit(domain.LogEvent("loading document chunks"))
	chunks, _ := docload.Chunks(pdfPath, cfg.Defaults.MaxPages, cfg.Defaults.ChunkSize, cfg.Defaults.ChunkOverlap)

	// 1. Classify — local, deterministic, never wrapped in a timeout
	// (spec §4.7/§5: must complete in <100ms so nothing downstream can
	// block on it).
	stageStart := time.Now()
	decision := classifier.ClassifyChunks(query, chunks)
	classifierDone := true
	trace.record("classifier", domain.TraceOK, stageStart, map[string]any{
		"external_needed": decision.ExternalNeeded,
		"max_similarity":  decision.MaxSimilarity,
	})
	emit(domain.LogEvent(fmt.Sprintf("classifier: %s", decision.Reason)))

	overallTimedOut := false
	checkDeadline := func(stage string) bool {
		if ctx.Err() == nil {
			return false
		}
		if !overallTimedOut {
			overallTimedOut = true
			emit(domain.ErrorEvent("System timed out (workflow)"))
		}
		trace.record(stage, domain.TraceSkipped, time.Now(), nil)
		return true
	}

	// 2. Retrieve, under its own stage timeout.
	var partials []domain.PartialAnswer
	if !checkDeadline("retriever") {
		partials = o.runRetrieverStage(ctx, trace, emit, query, chunks, maxChunks, streaming)
	}

	internalFacts := make([]domain.InternalFact, 0, len(partials))
	for _, p := range partials {
		internalFacts = append(internalFacts, domain.InternalFact{Text: p.Text, Page: p.Page, Similarity: p.Similarity})
	}

	// 3. Plan & execute external (primary path).
	var externalSnippets []domain.ToolSnippet
	toolAgentEnabled := cfg.Defaults.EnableToolAgent && o.deps.ToolAgent != nil
	if !checkDeadline("tool_agent") {
		if classifierDone && toolAgentEnabled && decision.ExternalNeeded {
			stageStart = time.Now()
			toolCtx, toolCancel := context.WithTimeout(ctx, cfg.Timeouts.ToolAgentAggregate)
			_, snippets := o.deps.ToolAgent.Run(toolCtx, query)
			toolCancel()
			externalSnippets = append(externalSnippets, snippets...)
			trace.record("tool_agent", domain.TraceOK, stageStart, map[string]any{"snippets": len(snippets)})
			emit(domain.LogEvent(fmt.Sprintf("tool agent returned %d external snippet(s)", len(snippets))))
		} else {
			trace.record("tool_agent", domain.TraceSkipped, time.Now(), nil)
		}
	}

	// 4. Partial external completion (secondary path) — fires regardless
	// of the classifier's decision so "document has X but not Y" queries
	// are not held hostage to classification (spec §4.13).
	partialCompletion := false
	if !checkDeadline("partial_completion") {
		if toolAgentEnabled && len(internalFacts) > 0 {
			missing := missingSlots(cfg, query, internalFacts)
			if len(missing) > 0 {
				stageStart = time.Now()
				targeted := buildTargetedQuery(query, missing)
				toolCtx, toolCancel := context.WithTimeout(ctx, cfg.Timeouts.ToolAgentAggregate)
				_, snippets := o.deps.ToolAgent.Run(toolCtx, targeted)
				toolCancel()
				if len(snippets) > 0 {
					externalSnippets = append(externalSnippets, snippets...)
					partialCompletion = true
				}
				trace.record("partial_completion", domain.TraceOK, stageStart, map[string]any{"missing_slots": slotNames(missing)})
			} else {
				trace.record("partial_completion", domain.TraceSkipped, time.Now(), nil)
			}
		} else {
			trace.record("partial_completion", domain.TraceSkipped, time.Now(), nil)
		}
	}

	externalFacts := toolagent.ToExternalFacts(externalSnippets)

	// 5. Memory recall.
	var memoryFacts []domain.MemoryFact
	if !checkDeadline("memory_recall") {
		stageStart = time.Now()
		entries := o.deps.Memory.Load(pdfPath)
		relevant := memory.FindRelevant(ctx, o.deps.Embedder, query, entries, cfg.Defaults.MaxMemoryToLoad)
		memoryFacts = make([]domain.MemoryFact, 0, len(relevant))
		for _, e := range relevant {
			memoryFacts = append(memoryFacts, domain.MemoryFact{
				Text:      fmt.Sprintf("Q: %s A: %s", e.Question, e.Answer),
				Timestamp: e.Timestamp,
			})
		}
		trace.record("memory_recall", domain.TraceOK, stageStart, map[string]any{"recalled": len(memoryFacts)})
	}

	// Provenance is derived solely from the internal/external fact lists,
	// never from the synthesized answer (spec §4.13 step 7, invariant 2).
	// It does not depend on what the synthesizer produces, so it is built
	// before synthesis — which lets the reranker verify each candidate
	// against the same authoritative provenance.
	provenance := buildProvenance(absPath, internalFacts, externalFacts)

	noEvidence := len(internalFacts) == 0 && len(externalFacts) == 0

	// 6. Synthesize.
	var answer string
	if !checkDeadline("synthesizer") && !noEvidence {
		stageStart = time.Now()
		answer = o.runSynthesisStage(ctx, emit, query, internalFacts, externalFacts, memoryFacts, provenance, partials, externalSnippets, streaming)
		trace.record("synthesizer", domain.TraceOK, stageStart, map[string]any{"chars": len(answer)})
	} else if noEvidence {
		trace.record("synthesizer", domain.TraceSkipped, time.Now(), map[string]any{"reason": "no evidence gathered"})
	}

	// 8. Verify.
	var confidence float64
	var flags []string
	if !checkDeadline("verifier") && !noEvidence {
		stageStart = time.Now()
		verdict := o.deps.Verifier.Verify(answer, provenance, partials, externalSnippets, 0)
		confidence = verdict.Confidence
		flags = append(flags, verdict.Flags...)
		if partialCompletion {
			flags = append(flags, PartialExternalCompletionFlag)
		}
		trace.record("verifier", domain.TraceOK, stageStart, map[string]any{"confidence": confidence})
	} else if noEvidence {
		trace.record("verifier", domain.TraceSkipped, time.Now(), nil)
	}

	// No evidence at all: the failsafe answer overrides whatever the
	// synthesizer (which was skipped) would otherwise have produced
	// (spec §7.5, invariant tested by scenario 4).
	if noEvidence {
		answer = domain.FailsafeAnswer
		confidence = 0
		flags = nil
		provenance = []domain.ProvenanceEntry{}
	}

	// 9. Persist — memory entries are appended even for a query that
	// produced no usable evidence, so the audit trail stays complete
	// (spec §4.4).
	if !checkDeadline("memory_persist") {
		o.persist(ctx, trace, pdfPath, query, answer, confidence, flags, provenance)
	}

	return Result{
		Answer:     answer,
		Confidence: confidence,
		Provenance: provenance,
		Flags:      flags,
		Trace:      trace.events,
	}
}

// runRetrieverStage runs the retriever agent under its stage timeout (spec
// §5: up to 45s in streaming mode; bounded by the overall budget in
// blocking mode). A timeout yields an empty partial-answer list and an
// error event naming the stage, never an exception.
func (o *Orchestrator) runRetrieverStage(ctx context.Context, trace *traceBuilder, emit func(domain.StreamEvent) bool, query string, chunks []domain.Chunk, maxChunks int, streaming bool) []domain.PartialAnswer {
	stageStart := time.Now()

	timeout := o.deps.Config.Timeouts.RetrieverStreaming
	if !streaming {
		if remaining := time.Until(deadlineOrZero(ctx)); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	retCtx, retCancel := context.WithTimeout(ctx, timeout)
	defer retCancel()

	ret := o.effectiveRetriever(maxChunks)

	resultCh := make(chan []domain.PartialAnswer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("orchestrator: recovered from panic in retriever", "panic", r)
				resultCh <- nil
			}
		}()
		resultCh <- ret.RetrieveChunks(retCtx, query, chunks)
	}()

	select {
	case partials := <-resultCh:
		trace.record("retriever", domain.TraceOK, stageStart, map[string]any{"partials": len(partials)})
		return partials
	case <-retCtx.Done():
		trace.record("retriever", domain.TraceError, stageStart, map[string]any{"error": "timeout"})
		emit(domain.ErrorEvent("System timed out (retriever)"))
		return nil
	}
}

// effectiveRetriever returns o.deps.Retriever, overriding K with maxChunks
// for this call when the caller supplied a positive value (spec §4.13's
// run_stream max_chunks parameter).
func (o *Orchestrator) effectiveRetriever(maxChunks int) *retriever.Retriever {
	if maxChunks <= 0 {
		return o.deps.Retriever
	}
	clone := *o.deps.Retriever
	k := maxChunks
	if k > retriever.MaxK {
		k = retriever.MaxK
	}
	clone.K = k
	return &clone
}

// runSynthesisStage performs one synthesis call (blocking or streaming) or,
// when the reranker is enabled, generates and ranks multiple candidates
// against the already-built provenance (spec §4.10/§4.12).
func (o *Orchestrator) runSynthesisStage(
	ctx context.Context,
	emit func(domain.StreamEvent) bool,
	query string,
	internal []domain.InternalFact,
	external []domain.ExternalFact,
	memoryFacts []domain.MemoryFact,
	provenance []domain.ProvenanceEntry,
	partials []domain.PartialAnswer,
	externalSnippets []domain.ToolSnippet,
	streaming bool,
) string {
	if o.deps.Reranker != nil {
		emit(domain.LogEvent("reranker: generating candidate answers"))
		candidates := o.deps.Reranker.GenerateCandidates(ctx, query, internal, external, memoryFacts)
		best := o.deps.Reranker.Rank(ctx, query, candidates, provenance, partials, externalSnippets, 0)
		emit(domain.TokenEvent(best.Answer))
		return best.Answer
	}

	if !streaming {
		return o.deps.Synthesizer.Synthesize(ctx, internal, external, memoryFacts, query, "")
	}

	pieces, errs := o.deps.Synthesizer.SynthesizeStream(ctx, internal, external, memoryFacts, query, "")
	var collected []string
	for {
		select {
		case p, ok := <-pieces:
			if !ok {
				return llmclient.JoinPieces(collected)
			}
			collected = append(collected, p)
			emit(domain.TokenEvent(p))
		case err, ok := <-errs:
			if ok && err != nil {
				emit(domain.ErrorEvent("System timed out (synthesizer)"))
			}
		case <-ctx.Done():
			return llmclient.JoinPieces(collected)
		}
	}
}

// persist appends a memory entry for this query, honoring SAVE_MEMORY
// (spec §6, §4.4). A write failure is recorded in the trace, never raised.
func (o *Orchestrator) persist(ctx context.Context, trace *traceBuilder, pdfPath, query, answer string, confidence float64, flags []string, provenance []domain.ProvenanceEntry) {
	stageStart := time.Now()
	if !o.deps.Config.Defaults.SaveMemory {
		trace.record("memory_persist", domain.TraceSkipped, stageStart, nil)
		return
	}

	vector, _ := o.deps.Embedder.Embed(ctx, answer)
	entry := domain.MemoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().Unix(),
		Question:   query,
		Answer:     answer,
		Confidence: confidence,
		Flags:      flags,
		Provenance: provenance,
		Embedding:  vector,
		ModelID:    o.deps.EmbedModel,
	}

	if err := o.deps.Memory.Append(pdfPath, entry); err != nil {
		slog.Error("orchestrator: failed to persist memory entry", "error", err)
		trace.record("memory_persist", domain.TraceError, stageStart, map[string]any{"error": err.Error()})
		return
	}
	trace.record("memory_persist", domain.TraceOK, stageStart, nil)
}

// buildProvenance derives one provenance entry per internal and external
// fact, in order (spec §4.13 step 7, invariant 2). Memory facts never
// produce provenance entries: their own provenance is a prior Q&A rather
// than a primary source (spec §9 open question, resolved in DESIGN.md).
func buildProvenance(pdfAbsPath string, internal []domain.InternalFact, external []domain.ExternalFact) []domain.ProvenanceEntry {
	out := make([]domain.ProvenanceEntry, 0, len(internal)+len(external))
	for _, f := range internal {
		out = append(out, domain.ProvenanceEntry{
			Type:       domain.ProvenanceInternal,
			Source:     pdfAbsPath,
			Page:       f.Page,
			Text:       domain.TruncateProvenanceText(f.Text),
			Similarity: f.Similarity,
		})
	}
	for _, f := range external {
		out = append(out, domain.ProvenanceEntry{
			Type:     domain.ProvenanceExternal,
			Source:   f.URL,
			Tool:     f.Tool,
			Category: f.Category,
			Text:     domain.TruncateProvenanceText(f.Text),
		})
	}
	return out
}

// missingSlots implements the missing-slot heuristic (spec §4.13): a slot
// is requested if any trigger phrase appears in the lowercased query, and
// missing if none of its trigger phrases appear in the concatenated
// lowercased internal fact texts.
func missingSlots(cfg *config.Config, query string, internal []domain.InternalFact) []config.Slot {
	requested := cfg.MatchingSlots(query)
	if len(requested) == 0 {
		return nil
	}

	var haystack strings.Builder
	for _, f := range internal {
		haystack.WriteString(strings.ToLower(f.Text))
		haystack.WriteByte(' ')
	}
	text := haystack.String()

	var missing []config.Slot
	for _, s := range requested {
		found := false
		for _, phrase := range s.TriggerPhrases {
			if strings.Contains(text, strings.ToLower(phrase)) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, s)
		}
	}
	return missing
}

// buildTargetedQuery narrows the original query to only the slots the
// internal evidence is missing, so the secondary external search asks for
// exactly what the document lacks (spec §4.13).
func buildTargetedQuery(query string, missing []config.Slot) string {
	return fmt.Sprintf("For the question %q, find only the following missing information: %s",
		query, strings.Join(slotNames(missing), ", "))
}

func slotNames(slots []config.Slot) []string {
	names := make([]string, 0, len(slots))
	for _, s := range slots {
		names = append(names, s.Name)
	}
	return names
}

// deadlineOrZero returns ctx's deadline, or the zero time if it has none.
func deadlineOrZero(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}
