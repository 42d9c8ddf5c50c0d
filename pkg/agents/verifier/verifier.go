// Package verifier scores a synthesized answer against the system-computed
// provenance built for it, producing a confidence value in [0,1] plus a set
// of quality flags (spec §4.11, C11-verifier). It never inspects the answer
// for provenance labels — only the structures the orchestrator built.
package verifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/retrieval"
)

// Flags the verifier itself may raise. PARTIAL_EXTERNAL_COMPLETION is
// appended by the orchestrator, never by the verifier (spec §4.11).
const (
	FlagOnlyGenericWeb        = "ONLY_GENERIC_WEB"
	FlagNumericContradiction  = "NUMERIC_CONTRADICTION"
	FlagOutdatedExternalData  = "OUTDATED_EXTERNAL_DATA"
	FlagLowEvidenceCoverage   = "LOW_EVIDENCE_COVERAGE"
	FlagPotentialHallucination = "POTENTIAL_HALLUCINATION"
)

// coverageThreshold is the token-overlap score above which a sentence is
// considered supported by the provenance text.
const coverageThreshold = 0.25

// lowCoverageThreshold is the coverage_score below which FlagLowEvidenceCoverage fires.
const lowCoverageThreshold = 0.4

// Result is the verifier's output.
type Result struct {
	Confidence  float64  `json:"confidence"`
	Flags       []string `json:"flags"`
	Explanation string   `json:"explanation"`
}

// Verifier scores answers against provenance using configured weights.
type Verifier struct {
	Weights       config.VerifierWeights
	SourceWeights *config.Config
}

// New creates a Verifier. cfg supplies both the blend weights and the
// per-category source-quality weights.
func New(cfg *config.Config) *Verifier {
	return &Verifier{Weights: cfg.VerifierWeights, SourceWeights: cfg}
}

// Verify scores answer against provenance, partials, and external snippets.
// docPublishedAt is the document's publish date as a Unix timestamp; 0 means
// unknown, which disables the outdated-external-data check.
func (v *Verifier) Verify(answer string, provenance []domain.ProvenanceEntry, partials []domain.PartialAnswer, external []domain.ToolSnippet, docPublishedAt int64) Result {
	maxInternalSim := maxInternalSimilarity(partials)
	sourceQuality := v.sourceQualityScore(provenance)
	sentences := splitSentences(answer)
	provenanceText := concatProvenanceText(provenance)
	coverage := coverageScore(sentences, provenanceText)
	consistency, consistencyFlags := v.consistencyScore(sentences, provenance, provenanceText, docPublishedAt)

	confidence := v.Weights.Similarity*maxInternalSim +
		v.Weights.SourceQual*sourceQuality +
		v.Weights.Coverage*coverage +
		v.Weights.Consistency*consistency

	var flags []string
	if onlyGenericWeb(external, v.SourceWeights) {
		flags = append(flags, FlagOnlyGenericWeb)
	}
	flags = append(flags, consistencyFlags...)
	if coverage < lowCoverageThreshold {
		flags = append(flags, FlagLowEvidenceCoverage)
	}
	if containsUnsupportedNumbers(answer, provenanceText) {
		flags = append(flags, FlagPotentialHallucination)
	}

	return Result{
		Confidence:  clamp01(confidence),
		Flags:       dedupe(flags),
		Explanation: explain(maxInternalSim, sourceQuality, coverage, consistency),
	}
}

func maxInternalSimilarity(partials []domain.PartialAnswer) float64 {
	max := 0.0
	for _, p := range partials {
		if p.Similarity > max {
			max = p.Similarity
		}
	}
	return max
}

func (v *Verifier) sourceQualityScore(provenance []domain.ProvenanceEntry) float64 {
	if len(provenance) == 0 {
		return 0
	}
	var sum float64
	for _, p := range provenance {
		if p.Type == domain.ProvenanceInternal {
			sum += v.SourceWeights.WeightForInternal()
		} else {
			sum += v.SourceWeights.WeightFor(config.ToolCategory(p.Category))
		}
	}
	return sum / float64(len(provenance))
}

func onlyGenericWeb(external []domain.ToolSnippet, cfg *config.Config) bool {
	present := false
	for _, s := range external {
		if s.Error {
			continue
		}
		present = true
		if cfg.WeightFor(config.ToolCategory(s.Category)) > cfg.SourceWeights.Generic {
			return false
		}
	}
	return present
}

var sentenceSplitter = regexp.MustCompile(`[.!?]+\s+`)

func splitSentences(answer string) []string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil
	}
	parts := sentenceSplitter.Split(answer, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

func concatProvenanceText(provenance []domain.ProvenanceEntry) string {
	var b strings.Builder
	for _, p := range provenance {
		b.WriteString(p.Text)
		b.WriteString(" ")
	}
	return b.String()
}

func coverageScore(sentences []string, provenanceText string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	covered := 0
	for _, s := range sentences {
		if retrieval.TokenOverlapScore(s, provenanceText) >= coverageThreshold {
			covered++
		}
	}
	return float64(covered) / float64(len(sentences))
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?%?`)

// consistencyScore computes 1.0 minus penalties for numeric contradictions
// between provenance entries, outdated external data, and unsupported
// answer sentences (spec §4.11).
func (v *Verifier) consistencyScore(sentences []string, provenance []domain.ProvenanceEntry, provenanceText string, docPublishedAt int64) (float64, []string) {
	score := 1.0
	var flags []string

	if hasNumericContradiction(provenance) {
		score -= 0.3
		flags = append(flags, FlagNumericContradiction)
	}

	if docPublishedAt > 0 && hasOutdatedExternalData(provenance, docPublishedAt) {
		score -= 0.2
		flags = append(flags, FlagOutdatedExternalData)
	}

	if len(sentences) > 0 {
		unsupported := 0
		for _, s := range sentences {
			if retrieval.TokenOverlapScore(s, provenanceText) < coverageThreshold {
				unsupported++
			}
		}
		score -= 0.5 * (float64(unsupported) / float64(len(sentences)))
	}

	if score < 0 {
		score = 0
	}
	return score, flags
}

// hasNumericContradiction reports whether two provenance entries assign
// different numeric values to the same nearby context word (a coarse proxy
// for "disagree about the same figure").
func hasNumericContradiction(provenance []domain.ProvenanceEntry) bool {
	contextToValue := make(map[string]string)
	for _, p := range provenance {
		tokens := strings.Fields(strings.ToLower(p.Text))
		for i, t := range tokens {
			if !numberPattern.MatchString(t) {
				continue
			}
			context := ""
			if i > 0 {
				context = tokens[i-1]
			}
			if context == "" {
				continue
			}
			if existing, ok := contextToValue[context]; ok && existing != t {
				return true
			}
			contextToValue[context] = t
		}
	}
	return false
}

var datePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

// hasOutdatedExternalData reports whether any external provenance entry
// carries a detectable date older than docPublishedAt (spec §4.11).
func hasOutdatedExternalData(provenance []domain.ProvenanceEntry, docPublishedAt int64) bool {
	for _, p := range provenance {
		if p.Type != domain.ProvenanceExternal {
			continue
		}
		match := datePattern.FindStringSubmatch(p.Text)
		if match == nil {
			continue
		}
		ts := parseDateToUnix(match[1], match[2], match[3])
		if ts > 0 && ts < docPublishedAt {
			return true
		}
	}
	return false
}

func parseDateToUnix(year, month, day string) int64 {
	parsed, err := time.Parse("2006-01-02", year+"-"+month+"-"+day)
	if err != nil {
		return 0
	}
	return parsed.Unix()
}

// containsUnsupportedNumbers checks only numeric claims against provenance;
// unsupported named entities (companies, regulators, people) are not
// checked, a BFSI-focused simplification of FlagPotentialHallucination.
func containsUnsupportedNumbers(answer, provenanceText string) bool {
	numbers := numberPattern.FindAllString(answer, -1)
	for _, n := range numbers {
		if !strings.Contains(provenanceText, n) {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func dedupe(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func explain(maxInternalSim, sourceQuality, coverage, consistency float64) string {
	return "confidence blends internal similarity, source quality, evidence coverage, and consistency: " +
		"similarity=" + formatScore(maxInternalSim) +
		" source_quality=" + formatScore(sourceQuality) +
		" coverage=" + formatScore(coverage) +
		" consistency=" + formatScore(consistency)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
