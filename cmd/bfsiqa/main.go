// bfsi-qa-core is a thin CLI wrapper around the orchestration core: it
// parses flags, wires the real remote clients, and prints the result as
// JSON (or forwards the streaming event contract line by line). Argument
// parsing and presentation live here deliberately — the orchestrator
// itself exposes only Run and RunStream (spec §6).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/classifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/reranker"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/retriever"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/synthesizer"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/toolagent"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/agents/verifier"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/cleanup"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/embedding"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/llmclient"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/masking"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/memory"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/orchestrator"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/tools"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	question := flag.String("question", "", "Natural-language question to ask against the PDF")
	pdfPath := flag.String("pdf", "", "Path to the PDF to query")
	stream := flag.Bool("stream", false, "Use the streaming event contract instead of a single blocking result")
	configPath := flag.String("config", getEnv("ORCHESTRATOR_CONFIG", "./orchestrator.yaml"), "Path to orchestrator.yaml")
	toolConfigPath := flag.String("tool-config", getEnv("TOOL_CONFIG", "./tool_config.json"), "Path to tool_config.json")
	credentialsPath := flag.String("credentials", getEnv("TOOL_CREDENTIALS", "./.tool_credentials.json"), "Path to the tool credentials file")
	memoryDir := flag.String("memory-dir", getEnv("MEMORY_DIR", "./memories"), "Directory for per-PDF memory files")
	interactive := flag.Bool("interactive", false, "Prompt on stdin for missing tool credentials instead of skipping")
	llmModel := flag.String("llm-model", getEnv("LLM_MODEL", "default"), "Model id passed to the LLM service")
	embedModel := flag.String("embed-model", getEnv("EMBED_MODEL", "default"), "Model id passed to the embedding service")
	flag.Parse()

	if *question == "" || *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bfsi-qa-core -question \"...\" -pdf path/to/file.pdf")
		os.Exit(2)
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	log.Printf("Starting %s", version.Full())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Defaults.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Flags the caller left at their default resolve relative to the
	// config file's own directory, so a deployment can ship
	// orchestrator.yaml alongside its tool_config.json, credentials, and
	// memory directory without repeating the path on every invocation.
	if dir := cfg.ConfigDir(); dir != "" {
		if !explicit["tool-config"] {
			*toolConfigPath = filepath.Join(dir, filepath.Base(*toolConfigPath))
		}
		if !explicit["credentials"] {
			*credentialsPath = filepath.Join(dir, filepath.Base(*credentialsPath))
		}
		if !explicit["memory-dir"] {
			*memoryDir = filepath.Join(dir, filepath.Base(*memoryDir))
		}
	}

	llm := llmclient.NewClient(getEnv("LLM_BASE_URL", "https://llm.internal/v1"), os.Getenv("LLM_API_KEY"))
	embedder := embedding.NewClient(getEnv("EMBED_BASE_URL", "https://embeddings.internal/v1"), os.Getenv("EMBED_API_KEY"), *embedModel)
	masker := masking.NewService()
	memStore := memory.NewStore(*memoryDir)

	var toolAgent *toolagent.Agent
	if cfg.Defaults.EnableToolAgent {
		registry, err := tools.LoadRegistry(*toolConfigPath, *credentialsPath)
		if err != nil {
			slog.Warn("tool agent disabled: could not load tool registry", "error", err)
		} else {
			planner := tools.NewPlanner(llm, registry, *llmModel)
			executor := tools.NewExecutor(registry, masker, cfg.Timeouts.ToolCallPerRequest)
			toolAgent = toolagent.New(planner, registry, executor, masker, *interactive)
		}
	}

	ret := retriever.New(embedder, llm, *llmModel, cfg.Defaults.MaxPages, cfg.Defaults.ChunkSize, cfg.Defaults.ChunkOverlap, retriever.DefaultK)
	synth := synthesizer.New(llm, *llmModel)
	ver := verifier.New(cfg)

	var rr *reranker.Reranker
	if cfg.Defaults.EnableReranker {
		rr = reranker.New(synth, ver, embedder, reranker.DefaultCandidates)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Config:      cfg,
		Classifier:  classifier.New(cfg.Defaults.MaxPages, cfg.Defaults.ChunkSize, cfg.Defaults.ChunkOverlap),
		Retriever:   ret,
		ToolAgent:   toolAgent,
		Synthesizer: synth,
		Verifier:    ver,
		Reranker:    rr,
		Memory:      memStore,
		Embedder:    embedder,
		EmbedModel:  embedder.ModelID(),
	})

	sweeper := cleanup.NewService(&cfg.Retention, memStore)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if *stream {
		runStreaming(ctx, orch, *question, *pdfPath)
		return
	}
	runBlocking(ctx, orch, *question, *pdfPath)
}

func runBlocking(ctx context.Context, orch *orchestrator.Orchestrator, question, pdfPath string) {
	result := orch.Run(ctx, question, pdfPath, false)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
}

func runStreaming(ctx context.Context, orch *orchestrator.Orchestrator, question, pdfPath string) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	for ev := range orch.RunStream(ctx, question, pdfPath, retriever.DefaultK, 30) {
		if ev.Type == domain.StreamToken {
			fmt.Print(ev.Text)
			continue
		}
		if err := enc.Encode(ev); err != nil {
			log.Fatalf("failed to encode event: %v", err)
		}
	}
	fmt.Println()
}
