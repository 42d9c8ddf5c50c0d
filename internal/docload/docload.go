// Package docload composes the pdfx and chunker collaborators into the
// single "load this PDF's chunks" operation every agent that reasons over a
// document needs (spec §6). It holds no state of its own; callers that want
// caching keep the result themselves.
package docload

import (
	"fmt"

	"github.com/pranshu-dhingra/bfsi-qa-core/internal/chunker"
	"github.com/pranshu-dhingra/bfsi-qa-core/internal/pdfx"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

// Chunks extracts up to maxPages pages of pdfPath and slices the result into
// page-tagged chunks of chunkSize runes with the given overlap. Non-positive
// chunkSize/overlap/maxPages fall back to the chunker/pdfx package defaults.
func Chunks(pdfPath string, maxPages, chunkSize, overlap int) ([]domain.Chunk, error) {
	text, pageLengths, err := pdfx.ExtractTextByPage(pdfPath, maxPages)
	if err != nil {
		return nil, fmt.Errorf("docload: extract %s: %w", pdfPath, err)
	}
	return chunker.ChunkWithPages(text, chunkSize, overlap, pageLengths), nil
}
