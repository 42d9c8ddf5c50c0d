// Package classifier implements the entry gate of the orchestration
// pipeline (spec §4.7, C7): a pure, local, deterministic decision about
// whether the document's own text is likely to answer a query, made without
// any LLM or embedding call so it can never block.
package classifier

import (
	"github.com/pranshu-dhingra/bfsi-qa-core/internal/docload"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// Threshold is the max-similarity cutoff above which internal evidence is
// considered sufficient (spec §4.7).
const Threshold = 0.70

// Decision is the classifier's verdict for one query against one document.
type Decision struct {
	InternalSufficient bool    `json:"internal_sufficient"`
	ExternalNeeded     bool    `json:"external_needed"`
	Reason             string  `json:"reason"`
	MaxSimilarity      float64 `json:"max_similarity"`
}

// Classifier holds the chunking parameters needed to load a document; it
// carries no client dependencies because classification never calls an LLM
// or embedding service (spec §4.7).
type Classifier struct {
	MaxPages     int
	ChunkSize    int
	ChunkOverlap int
}

// New creates a Classifier with the given chunking parameters.
func New(maxPages, chunkSize, chunkOverlap int) *Classifier {
	return &Classifier{MaxPages: maxPages, ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Classify loads pdfPath's chunks and scores query against every chunk by
// token overlap, deciding internal sufficiency purely from the maximum
// score. It never returns an error: an unreadable PDF simply yields zero
// similarity, so external lookup is recommended.
func (c *Classifier) Classify(query, pdfPath string) Decision {
	chunks, err := docload.Chunks(pdfPath, c.MaxPages, c.ChunkSize, c.ChunkOverlap)
	if err != nil || len(chunks) == 0 {
		return Decision{
			InternalSufficient: false,
			ExternalNeeded:     true,
			Reason:             "document could not be read or contains no extractable text",
		}
	}
	return ClassifyChunks(query, chunks)
}

// ClassifyChunks runs the same decision over an already-loaded chunk list,
// letting callers that have already extracted chunks (e.g. the retriever,
// within one query) avoid re-reading the PDF.
func ClassifyChunks(query string, chunks []domain.Chunk) Decision {
	max := 0.0
	for _, c := range chunks {
		if s := retrieval.TokenOverlapScore(query, c.Text); s > max {
			max = s
		}
	}

	if max >= Threshold {
		return Decision{
			InternalSufficient: true,
			ExternalNeeded:     false,
			Reason:             "internal token-overlap similarity meets the sufficiency threshold",
			MaxSimilarity:      max,
		}
	}
	return Decision{
		InternalSufficient: false,
		ExternalNeeded:     true,
		Reason:             "internal token-overlap similarity falls below the sufficiency threshold",
		MaxSimilarity:      max,
	}
}
