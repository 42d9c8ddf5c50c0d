// Package domain defines the data model shared by every stage of the
// question-answering pipeline: chunks, embeddings, the three structured fact
// lists the synthesizer consumes, provenance entries, tool snippets, memory
// entries, and the trace/stream event envelopes.
//
// Nothing in this package calls out to the network or the filesystem; it is
// pure data plus the small amount of derivation logic (provenance text
// truncation, timestamp formatting) that every caller would otherwise
// duplicate.
package domain

import "time"

// ProvenanceTextLimit is the maximum length, in runes, of a provenance
// entry's Text field. Longer source text is truncated with an ellipsis.
const ProvenanceTextLimit = 500

// Chunk is a contiguous slice of extracted PDF text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Page  int    `json:"page,omitempty"` // 1-based; 0 means unknown
}

// Embedding is a fixed-length numeric vector representing a piece of text.
type Embedding struct {
	Vector  []float64 `json:"vector"`
	ModelID string    `json:"model_id"`
}

// PartialAnswer is the retriever's output for one relevant chunk.
type PartialAnswer struct {
	Text       string  `json:"text"`
	ChunkText  string  `json:"chunk_text"`
	Page       int     `json:"page,omitempty"`
	Similarity float64 `json:"similarity"`
}

// InternalFact is one of the three structured inputs to the synthesizer,
// built from the retriever agent's partial answers.
type InternalFact struct {
	Text       string  `json:"text"`
	Page       int     `json:"page,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// ExternalFact is one of the three structured inputs to the synthesizer,
// built from tool snippets.
type ExternalFact struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	Tool     string `json:"tool"`
	Category string `json:"category"`
}

// MemoryFact is one of the three structured inputs to the synthesizer,
// built from prior Q&A recalled from the per-PDF memory store.
type MemoryFact struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ProvenanceType discriminates a ProvenanceEntry's source kind.
type ProvenanceType string

const (
	ProvenanceInternal ProvenanceType = "internal"
	ProvenanceExternal ProvenanceType = "external"
)

// ProvenanceEntry is a system-computed attribution of one piece of synthesis
// evidence to its source. It is built exclusively by the orchestrator from
// the fact lists passed to the synthesizer — never by the LLM.
type ProvenanceEntry struct {
	Type       ProvenanceType `json:"type"`
	Source     string         `json:"source"` // PDF absolute path or URL
	Page       int            `json:"page,omitempty"`
	Tool       string         `json:"tool,omitempty"`
	Category   string         `json:"category,omitempty"`
	Text       string         `json:"text"`
	Similarity float64        `json:"similarity,omitempty"`
}

// TruncateProvenanceText truncates s to ProvenanceTextLimit runes, appending
// an ellipsis marker when truncation occurs.
func TruncateProvenanceText(s string) string {
	r := []rune(s)
	if len(r) <= ProvenanceTextLimit {
		return s
	}
	return string(r[:ProvenanceTextLimit-1]) + "…"
}

// ToolSnippet is the normalized output of a single tool call.
type ToolSnippet struct {
	Tool      string `json:"tool"`
	Category  string `json:"category"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	FetchedAt int64  `json:"fetched_at"`
	Error     bool   `json:"error,omitempty"`
}

// FailedToolSnippet builds the normalized error snippet returned in place of
// a raised exception (spec §4.6 / §7.1).
func FailedToolSnippet(tool, category string) ToolSnippet {
	return ToolSnippet{
		Tool:      tool,
		Category:  category,
		Text:      "Tool failed or unavailable",
		URL:       "",
		FetchedAt: time.Now().Unix(),
		Error:     true,
	}
}

// MemoryEntry is a persisted Q&A record for one PDF.
type MemoryEntry struct {
	ID         string            `json:"id"`
	Timestamp  int64             `json:"timestamp"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Flags      []string          `json:"flags"`
	Provenance []ProvenanceEntry `json:"provenance"`
	Embedding  []float64         `json:"embedding,omitempty"`
	ModelID    string            `json:"model_id,omitempty"`
}

// TraceStatus is the outcome recorded for one pipeline stage.
type TraceStatus string

const (
	TraceOK      TraceStatus = "ok"
	TraceError   TraceStatus = "error"
	TraceSkipped TraceStatus = "skipped"
)

// TraceEvent records the outcome of one orchestrator stage.
type TraceEvent struct {
	Agent     string         `json:"agent"`
	Status    TraceStatus    `json:"status"`
	LatencyMS int64          `json:"latency_ms"`
	Timestamp int64          `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// StreamEventType discriminates the four kinds of events the streaming
// protocol emits.
type StreamEventType string

const (
	StreamLog   StreamEventType = "log"
	StreamToken StreamEventType = "token"
	StreamError StreamEventType = "error"
	StreamFinal StreamEventType = "final"
)

// StreamEvent is one event in the run_stream protocol. Exactly one field set
// matching Type is populated per spec §3; the rest are zero values.
type StreamEvent struct {
	Type       StreamEventType   `json:"type"`
	Message    string            `json:"message,omitempty"`    // log, error
	Text       string            `json:"text,omitempty"`       // token
	Answer     string            `json:"answer,omitempty"`     // final
	Confidence float64           `json:"confidence,omitempty"` // final
	Provenance []ProvenanceEntry `json:"provenance,omitempty"` // final
	Trace      []TraceEvent      `json:"trace,omitempty"`      // final
	Flags      []string          `json:"flags,omitempty"`      // final
}

// LogEvent builds a StreamEvent of type "log".
func LogEvent(message string) StreamEvent { return StreamEvent{Type: StreamLog, Message: message} }

// TokenEvent builds a StreamEvent of type "token".
func TokenEvent(text string) StreamEvent { return StreamEvent{Type: StreamToken, Text: text} }

// ErrorEvent builds a StreamEvent of type "error".
func ErrorEvent(message string) StreamEvent { return StreamEvent{Type: StreamError, Message: message} }

// FinalEvent builds a StreamEvent of type "final".
func FinalEvent(answer string, confidence float64, provenance []ProvenanceEntry, flags []string, trace []TraceEvent) StreamEvent {
	if provenance == nil {
		provenance = []ProvenanceEntry{}
	}
	if flags == nil {
		flags = []string{}
	}
	return StreamEvent{
		Type:       StreamFinal,
		Answer:     answer,
		Confidence: confidence,
		Provenance: provenance,
		Flags:      flags,
		Trace:      trace,
	}
}

// FailsafeAnswer is returned when the pipeline could gather no evidence at
// all (spec §7.5, invariant tested by scenario 4).
const FailsafeAnswer = "System could not retrieve sufficient evidence for this query."
