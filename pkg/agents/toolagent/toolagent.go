// Package toolagent composes the planner, credential handshake, and
// executor into the single operation the orchestrator calls when it
// decides external evidence is needed (spec §4.9, C9-planner-facing).
package toolagent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/tools"
)

// Agent composes a planner, registry, and executor.
type Agent struct {
	Planner     *tools.Planner
	Registry    *tools.Registry
	Executor    *tools.Executor
	Masker      *masking.Service
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

// New creates a tool agent wired to run non-interactively against os.Stdin
// (only consulted when Interactive is true).
func New(planner *tools.Planner, registry *tools.Registry, executor *tools.Executor, masker *masking.Service, interactive bool) *Agent {
	return &Agent{
		Planner:     planner,
		Registry:    registry,
		Executor:    executor,
		Masker:      masker,
		Interactive: interactive,
		In:          os.Stdin,
		Out:         os.Stdout,
	}
}

// Run plans, resolves credentials, and executes tools for query, returning
// the snippets plus their newline-joined text for convenience. Any internal
// failure collapses to ("", nil) rather than propagating (spec §4.9) —
// callers never need to distinguish "no external evidence" from "tool
// agent errored".
func (a *Agent) Run(ctx context.Context, query string) (joinedText string, snippets []domain.ToolSnippet) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("toolagent: recovered from panic", "panic", r)
			joinedText, snippets = "", nil
		}
	}()

	plan := a.Planner.Plan(ctx, query)
	handshake := tools.ResolveCredentials(a.Registry, plan.RecommendedProviders, a.Interactive, a.In, a.Out, a.Masker)
	snippets = a.Executor.Execute(ctx, handshake.ReadyProviders, query, plan.Category)

	return JoinSnippets(snippets), snippets
}

// JoinSnippets concatenates snippet text into one plain-text block,
// skipping failed snippets so their placeholder text never pollutes the
// synthesis prompt.
func JoinSnippets(snippets []domain.ToolSnippet) string {
	var lines []string
	for _, s := range snippets {
		if s.Error {
			continue
		}
		lines = append(lines, s.Text)
	}
	return strings.Join(lines, "\n")
}

// ToExternalFacts converts executor snippets into the synthesizer's
// external-fact shape, dropping failed snippets.
func ToExternalFacts(snippets []domain.ToolSnippet) []domain.ExternalFact {
	facts := make([]domain.ExternalFact, 0, len(snippets))
	for _, s := range snippets {
		if s.Error {
			continue
		}
		facts = append(facts, domain.ExternalFact{
			Text:     s.Text,
			URL:      s.URL,
			Tool:     s.Tool,
			Category: s.Category,
		})
	}
	return facts
}
