// Package retriever implements the document-grounded evidence gatherer
// (spec §4.8, C8): it loads a document's chunks, ranks them against the
// query by embedding similarity (falling back to token overlap), and asks
// the LLM for a short extractive partial answer from each of the top
// chunks.
package retriever

import (
	"context"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/internal/docload"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// MaxK is the hard cap on how many top chunks are sent to the LLM for
// per-chunk extraction (spec §4.8).
const MaxK = 15

// DefaultK is used when the caller does not specify a smaller k.
const DefaultK = 5

// partialAnswerMaxChars bounds the chunk-text fallback used when the LLM
// returns an empty extraction, so a fallback partial never balloons the
// downstream synthesis prompt.
const partialAnswerMaxChars = 600

// LLM is the narrow interface the retriever needs from pkg/llmclient.
type LLM interface {
	Call(ctx context.Context, prompt string, opts llmclient.Options) string
}

// Retriever loads a document, ranks its chunks, and extracts partial
// answers via an LLM.
type Retriever struct {
	Embedder     retrieval.Embedder
	LLM          LLM
	Model        string
	MaxPages     int
	ChunkSize    int
	ChunkOverlap int
	K            int
}

// New creates a Retriever. A non-positive k falls back to DefaultK, capped
// at MaxK.
func New(embedder retrieval.Embedder, llm LLM, model string, maxPages, chunkSize, chunkOverlap, k int) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}
	return &Retriever{
		Embedder:     embedder,
		LLM:          llm,
		Model:        model,
		MaxPages:     maxPages,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		K:            k,
	}
}

// Retrieve loads pdfPath's chunks, ranks them against query, and returns one
// partial answer per top-k chunk. A document that cannot be read yields an
// empty result rather than an error, matching the no-raise discipline every
// agent in this package follows (spec §4.8/§7).
func (r *Retriever) Retrieve(ctx context.Context, query, pdfPath string) []domain.PartialAnswer {
	chunks, err := docload.Chunks(pdfPath, r.MaxPages, r.ChunkSize, r.ChunkOverlap)
	if err != nil || len(chunks) == 0 {
		return nil
	}
	return r.RetrieveChunks(ctx, query, chunks)
}

// RetrieveChunks is like Retrieve but over an already-loaded chunk list, for
// callers (such as the orchestrator) that load chunks once and share them
// with the classifier.
func (r *Retriever) RetrieveChunks(ctx context.Context, query string, chunks []domain.Chunk) []domain.PartialAnswer {
	top := retrieval.TopKEmbedding(ctx, r.Embedder, query, chunks, r.K)

	partials := make([]domain.PartialAnswer, 0, len(top))
	for _, result := range top {
		text := r.extract(ctx, query, result.ChunkText)
		partials = append(partials, domain.PartialAnswer{
			Text:       text,
			ChunkText:  result.ChunkText,
			Page:       result.Page,
			Similarity: result.Similarity,
		})
	}
	return partials
}

// extract asks the LLM for a short extractive answer grounded only in
// chunkText. If the model returns nothing usable, the truncated chunk text
// itself stands in so the synthesizer always has some evidence to work
// with (spec §4.8).
func (r *Retriever) extract(ctx context.Context, query, chunkText string) string {
	prompt := buildExtractionPrompt(query, chunkText)
	answer := strings.TrimSpace(r.LLM.Call(ctx, prompt, llmclient.Options{Model: r.Model}))
	if answer != "" {
		return answer
	}
	return truncate(chunkText, partialAnswerMaxChars)
}

func buildExtractionPrompt(query, chunkText string) string {
	var b strings.Builder
	b.WriteString("Extract a short, direct answer to the question below using ONLY the passage text. ")
	b.WriteString("If the passage does not address the question, respond with an empty string.\n\n")
	b.WriteString("PASSAGE:\n")
	b.WriteString(chunkText)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(query)
	b.WriteString("\nANSWER:")
	return b.String()
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + "…"
}
