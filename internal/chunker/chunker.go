// Package chunker is the sliding-window chunking collaborator described in
// spec §6: it never makes decisions about relevance or similarity, it only
// cuts text into overlapping windows and (optionally) tags each window with
// the page it falls on.
package chunker

import "github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"

// DefaultChunkSize and DefaultChunkOverlap are the built-in defaults used
// when the caller passes non-positive values (spec §6, env vars CHUNK_SIZE
// / CHUNK_OVERLAP).
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Chunk slices text into a sliding window of chunkSize characters advancing
// by (chunkSize - overlap) characters each step. The last chunk may be
// shorter than chunkSize. A non-positive chunkSize or an overlap >= chunkSize
// falls back to the package defaults to guarantee forward progress.
func Chunk(text string, chunkSize, overlap int) []domain.Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := chunkSize - overlap
	var chunks []domain.Chunk
	for start, idx := 0, 0; start < len(runes); start += stride {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Index: idx,
			Text:  string(runes[start:end]),
		})
		idx++
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkWithPages is like Chunk but assigns each chunk the 1-based page
// number its starting offset falls on, given the per-page rune counts
// produced by pdfx.ExtractTextByPage.
func ChunkWithPages(text string, chunkSize, overlap int, pageLengths []int) []domain.Chunk {
	chunks := Chunk(text, chunkSize, overlap)
	if len(pageLengths) == 0 {
		return chunks
	}

	runes := []rune(text)
	offsets := make([]int, len(chunks))
	cursor := 0
	searchFrom := 0
	for i, c := range chunks {
		start := indexRuneOffset(runes, []rune(c.Text), searchFrom)
		if start < 0 {
			start = cursor
		}
		offsets[i] = start
		cursor = start + 1
		searchFrom = start
	}

	for i := range chunks {
		chunks[i].Page = pageForOffset(pageLengths, offsets[i])
	}
	return chunks
}

func indexRuneOffset(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	if len(needle) == 0 || from+len(needle) > len(haystack) {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pageForOffset(pageLengths []int, offset int) int {
	cursor := 0
	for i, length := range pageLengths {
		cursor += length + 2
		if offset < cursor {
			return i + 1
		}
	}
	if len(pageLengths) > 0 {
		return len(pageLengths)
	}
	return 0
}
