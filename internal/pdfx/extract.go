// Package pdfx is the thin PDF-text-extraction collaborator described in
// spec §6. It is deliberately small: byte-level PDF parsing is explicitly
// out of scope for the orchestration core (spec §1), but the core needs a
// real, working collaborator to call rather than a stub, so the rest of the
// pipeline exercises actual extracted text.
package pdfx

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages is the default page budget for ExtractTextByPage (spec §6).
const DefaultMaxPages = 20

// extractPage extracts the plain text of a single 1-based page. Any error
// (malformed content stream, missing font metrics, ...) is logged and
// swallowed; the page contributes an empty string rather than failing the
// whole extraction.
func extractPage(r *pdf.Reader, pageNum int, path string) string {
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Warn("pdfx: failed to extract page text, continuing", "pdf", path, "page", pageNum, "error", err)
		return ""
	}
	return text
}

// ExtractTextByPage reads up to maxPages pages from the PDF at path,
// returning the joined text plus the length, in runes, of each page's
// contributed text so callers (chunker.ChunkWithPages) can map a chunk's
// character offset back to a page number.
func ExtractTextByPage(path string, maxPages int) (full string, pageLengths []int, err error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("pdfx: open %s: %w", path, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages > maxPages {
		numPages = maxPages
	}

	pages := make([]string, 0, numPages)
	lengths := make([]int, 0, numPages)
	for i := 1; i <= numPages; i++ {
		text := extractPage(r, i, path)
		pages = append(pages, text)
		lengths = append(lengths, len([]rune(text)))
	}

	return strings.Join(pages, "\n\n"), lengths, nil
}
