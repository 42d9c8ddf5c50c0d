// Package synthesizer turns internal facts, external facts, and recalled
// memory into a single natural-language answer (spec §4.10, C10). It never
// decides provenance — that is system-computed by the orchestrator from the
// same fact lists — and it strips any accidental provenance labels the
// model emits anyway.
package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
)

// SystemInstruction is the verbatim system instruction the prompt contract
// requires (spec §4.10). It must never be paraphrased.
const SystemInstruction = "You are synthesizing a financial research answer. Use ONLY the provided facts. Do NOT add any provenance labels. Do NOT write [INTERNAL] or [EXTERNAL]. Just write the answer text. Respect any length or format requested in the question."

// LLM is the narrow interface the synthesizer needs from pkg/llmclient.
type LLM interface {
	Call(ctx context.Context, prompt string, opts llmclient.Options) string
	Stream(ctx context.Context, prompt string, opts llmclient.Options) (<-chan string, <-chan error)
}

// Synthesizer produces answers from structured facts via an LLM.
type Synthesizer struct {
	LLM   LLM
	Model string
}

// New creates a Synthesizer backed by llm.
func New(llm LLM, model string) *Synthesizer {
	return &Synthesizer{LLM: llm, Model: model}
}

// Synthesize performs a blocking synthesis call. variation, when non-empty,
// is appended to the prompt to elicit a differently-shaped candidate (used
// by the reranker, spec §4.12).
func (s *Synthesizer) Synthesize(ctx context.Context, internal []domain.InternalFact, external []domain.ExternalFact, memory []domain.MemoryFact, question, variation string) string {
	prompt := BuildPrompt(internal, external, memory, question, variation)
	raw := s.LLM.Call(ctx, prompt, llmclient.Options{Model: s.Model})
	return stripProvenanceLabels(raw)
}

// SynthesizeStream performs a streaming synthesis call, returning a channel
// of cleaned text pieces and a channel carrying at most one error. Like
// llmclient.Stream, it performs no output side effects of its own.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, internal []domain.InternalFact, external []domain.ExternalFact, memory []domain.MemoryFact, question, variation string) (<-chan string, <-chan error) {
	prompt := BuildPrompt(internal, external, memory, question, variation)
	rawPieces, errs := s.LLM.Stream(ctx, prompt, llmclient.Options{Model: s.Model})

	pieces := make(chan string, 32)
	go func() {
		defer close(pieces)
		for p := range rawPieces {
			cleaned := stripProvenanceLabels(p)
			if cleaned == "" {
				continue
			}
			select {
			case pieces <- cleaned:
			case <-ctx.Done():
				return
			}
		}
	}()
	return pieces, errs
}

// BuildPrompt renders the three labeled fact sections plus the question,
// exactly as the prompt contract requires (spec §4.10): empty sections
// still show an explicit "(none)" marker.
func BuildPrompt(internal []domain.InternalFact, external []domain.ExternalFact, memory []domain.MemoryFact, question, variation string) string {
	var b strings.Builder
	b.WriteString(SystemInstruction)
	b.WriteString("\n\n")

	b.WriteString("INTERNAL FACTS:\n")
	if len(internal) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, f := range internal {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}

	b.WriteString("\nEXTERNAL FACTS:\n")
	if len(external) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, f := range external {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}

	b.WriteString("\nPRIOR MEMORY:\n")
	if len(memory) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, f := range memory {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}

	fmt.Fprintf(&b, "\nQUESTION: %s\n", question)
	if variation != "" {
		fmt.Fprintf(&b, "%s\n", variation)
	}
	b.WriteString("ANSWER:")
	return b.String()
}

var provenanceLabels = []string{"[INTERNAL]", "[EXTERNAL]", "[internal]", "[external]"}

// stripProvenanceLabels removes any accidental provenance label the model
// emits despite the system instruction forbidding them (spec §4.10).
func stripProvenanceLabels(s string) string {
	for _, label := range provenanceLabels {
		s = strings.ReplaceAll(s, label, "")
	}
	return strings.TrimSpace(s)
}
