// Package memory implements the per-PDF persistent Q&A store (spec §4.4,
// C4): atomic append, semantic lookup, and the file-naming scheme that
// keeps distinct absolute paths from ever sharing a memory file.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// ErrMemoryDirUnavailable is returned when the memory directory cannot be
// created.
var ErrMemoryDirUnavailable = errors.New("memory: directory unavailable")

// Embedder is the narrow interface the store needs for semantic lookup.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, bool)
}

// Store is a per-PDF JSON-file memory store rooted at Dir.
type Store struct {
	Dir string
}

// NewStore creates a Store rooted at dir (created lazily on first write).
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// FileFor returns the memory file path for pdfPath per spec §3 invariant 4:
// memories/memory_<basename>_<hash10>.json, where hash10 is the first 10
// hex characters of sha256(absolute path).
func (s *Store) FileFor(pdfPath string) (string, error) {
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return "", fmt.Errorf("memory: resolve absolute path: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	hash10 := hex.EncodeToString(sum[:])[:10]
	base := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	return filepath.Join(s.Dir, fmt.Sprintf("memory_%s_%s.json", base, hash10)), nil
}

// Load returns the memory entries for pdfPath, or an empty slice if the
// file is missing or unreadable (spec §4.4).
func (s *Store) Load(pdfPath string) []domain.MemoryEntry {
	file, err := s.FileFor(pdfPath)
	if err != nil {
		return []domain.MemoryEntry{}
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return []domain.MemoryEntry{}
	}
	var entries []domain.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []domain.MemoryEntry{}
	}
	return entries
}

// Append reads the current entry list, appends entry, and writes the result
// atomically: write to a sibling temp file, then rename over the target
// (spec §3 invariant 3). Entries are appended even when a query produced no
// usable evidence, so the caller should not special-case empty provenance.
func (s *Store) Append(pdfPath string, entry domain.MemoryEntry) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryDirUnavailable, err)
	}

	file, err := s.FileFor(pdfPath)
	if err != nil {
		return err
	}

	entries := s.Load(pdfPath)
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal entries: %w", err)
	}

	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return fmt.Errorf("memory: rename temp file: %w", err)
	}
	return nil
}

// Clear deletes the memory file for pdfPath, if present.
func (s *Store) Clear(pdfPath string) error {
	file, err := s.FileFor(pdfPath)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memory: remove %s: %w", file, err)
	}
	return nil
}

// PruneFile rewrites the memory file at path, keeping only entries with
// Timestamp >= cutoff (epoch seconds), atomically as in Append. It returns
// the number of entries removed; a file with no entries left is deleted
// rather than left as an empty array on disk. Used by the retention
// sweeper, which walks ListAll's file paths without knowing the original
// PDF path each one came from.
func (s *Store) PruneFile(path string, cutoff int64) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("memory: read %s: %w", path, err)
	}
	var entries []domain.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("memory: parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if e.Timestamp >= cutoff {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if len(kept) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("memory: remove %s: %w", path, err)
		}
		return removed, nil
	}

	out, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("memory: marshal pruned entries: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return 0, fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("memory: rename temp file: %w", err)
	}
	return removed, nil
}

// ListAll returns the paths of every memory file currently on disk.
func (s *Store) ListAll() []string {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "memory_") && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(s.Dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files
}

// FindRelevant ranks entries by cosine similarity of the query embedding
// against each entry's stored answer embedding, falling back to token
// overlap against the concatenated question+answer text when embeddings are
// missing (spec §4.4). Returns at most topK entries, most relevant first.
func FindRelevant(ctx context.Context, embedder Embedder, query string, entries []domain.MemoryEntry, topK int) []domain.MemoryEntry {
	if len(entries) == 0 {
		return nil
	}

	type scored struct {
		entry domain.MemoryEntry
		score float64
	}

	queryVec, haveQueryVec := embedder.Embed(ctx, query)

	results := make([]scored, len(entries))
	for i, e := range entries {
		var score float64
		if haveQueryVec && len(e.Embedding) > 0 {
			score = retrieval.Cosine(queryVec, e.Embedding)
		} else {
			score = retrieval.TokenOverlapScore(query, e.Question+" "+e.Answer)
		}
		results[i] = scored{entry: e, score: score}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	out := make([]domain.MemoryEntry, topK)
	for i := 0; i < topK; i++ {
		out[i] = results[i].entry
	}
	return out
}
