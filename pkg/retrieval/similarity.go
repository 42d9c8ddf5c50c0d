// Package retrieval implements the chunk retriever (spec §4.3, C3):
// token-overlap and embedding-similarity search over chunk lists.
package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

// Embedder is the narrow interface the retriever needs from pkg/embedding.
// Embed returns (nil, false) when no embedding is available.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, bool)
}

var tokenSplitter = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases s and splits on non-alphanumerics, dropping tokens of
// length <= 2 (spec §4.3).
func Tokenize(s string) map[string]struct{} {
	lower := strings.ToLower(s)
	parts := tokenSplitter.Split(lower, -1)
	tokens := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if len(p) > 2 {
			tokens[p] = struct{}{}
		}
	}
	return tokens
}

// TokenOverlapScore scores query against chunkText as
// |query ∩ chunk| / max(1, |query|).
func TokenOverlapScore(query, chunkText string) float64 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	chunkTokens := Tokenize(chunkText)

	overlap := 0
	for t := range queryTokens {
		if _, ok := chunkTokens[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / math.Max(1, float64(len(queryTokens)))
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero
// vector or they have mismatched lengths.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Result is one scored chunk returned by TopKTokenOverlap / TopKEmbedding.
type Result struct {
	ChunkText string
	Idx       int
	Page      int
	Similarity float64
}

// TopKTokenOverlap scores every chunk against query by token-overlap and
// returns the top k descending. No network calls; completes in well under
// the 100ms budget spec §4.3/§4.7 impose for <=100 chunks.
func TopKTokenOverlap(query string, chunks []domain.Chunk, k int) []Result {
	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{
			ChunkText:  c.Text,
			Idx:        c.Index,
			Page:       c.Page,
			Similarity: TokenOverlapScore(query, c.Text),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	return capK(results, k)
}

// TopKEmbedding scores every chunk by cosine similarity of its embedding to
// the query embedding, computing per-chunk embeddings concurrently (bounded
// by errgroup) and reusing any embedding the caller already attached via
// cache. Falls back silently to TopKTokenOverlap if the query embedding or
// any chunk embedding is unavailable.
func TopKEmbedding(ctx context.Context, embedder Embedder, query string, chunks []domain.Chunk, k int) []Result {
	queryVec, ok := embedder.Embed(ctx, query)
	if !ok {
		return TopKTokenOverlap(query, chunks, k)
	}

	vectors := make([][]float64, len(chunks))
	oks := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			v, ok := embedder.Embed(gctx, c.Text)
			vectors[i] = v
			oks[i] = ok
			return nil
		})
	}
	_ = g.Wait() // Embed never returns an error; degraded chunks are handled below.

	for _, ok := range oks {
		if !ok {
			return TopKTokenOverlap(query, chunks, k)
		}
	}

	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{
			ChunkText:  c.Text,
			Idx:        c.Index,
			Page:       c.Page,
			Similarity: Cosine(queryVec, vectors[i]),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	return capK(results, k)
}

func capK(results []Result, k int) []Result {
	if k <= 0 || k > len(results) {
		k = len(results)
	}
	return results[:k]
}
