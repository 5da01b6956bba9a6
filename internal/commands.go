package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/snapshot"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tools"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// system bundles the components every command builds: vault storage, the
// in-memory index, the tool registry, and the agent orchestrator.
type system struct {
	files        *storage.FS
	snaps        snapshot.Store
	embedder     embedding.Service
	index        *index.Index
	registry     *tools.Registry
	orchestrator *agent.Orchestrator

	closeSnaps func() error
}

func (s *system) close(logger *slog.Logger) {
	if s.closeSnaps == nil {
		return
	}
	if err := s.closeSnaps(); err != nil {
		logger.Warn("Snapshot store close failed", slog.String("error", err.Error()))
	}
}

// openSystem wires storage, snapshot persistence, the model backends, the
// index, and the agent from configuration. Missing API keys are not fatal:
// search degrades to substring matching and ask reports unavailable. The
// index is constructed empty; callers load or build it.
func openSystem(cfg *Config, logger *slog.Logger, onIndexed, onRemoved func(path string)) (*system, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	files, err := storage.NewFS(cfg.Vault.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Snapshot store is optional; without it the index rebuilds each start.
	var snaps snapshot.Store
	var closeSnaps func() error
	if cfg.Snapshot.Path != "" {
		db, err := snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		snaps = db
		closeSnaps = db.Close
	}

	var embedder embedding.Service
	if emb, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
	}); err != nil {
		if !errors.Is(err, apperr.ErrUnavailable) {
			return nil, fmt.Errorf("init embedding client: %w", err)
		}
		logger.Warn("Embedding backend not configured, using substring search",
			slog.String("error", err.Error()))
		embedder = embedding.Disabled{}
	} else {
		embedder = emb
	}

	var completer llm.Completer
	if chat, err := llm.NewChat(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}); err != nil {
		if !errors.Is(err, apperr.ErrUnavailable) {
			return nil, fmt.Errorf("init chat client: %w", err)
		}
		logger.Warn("Chat backend not configured, agent answers disabled",
			slog.String("error", err.Error()))
		completer = llm.Disabled{}
	} else {
		completer = chat
	}

	ixOpts := cfg.Index.Options()
	ixOpts.OnIndexed = onIndexed
	ixOpts.OnRemoved = onRemoved
	ix := index.New(files, embedder, snaps, logger, ixOpts)

	registry := tools.NewRegistry(ix, nil)
	orchestrator := agent.New(completer, registry, logger, cfg.Agent.Options())

	return &system{
		files:        files,
		snaps:        snaps,
		embedder:     embedder,
		index:        ix,
		registry:     registry,
		orchestrator: orchestrator,
		closeSnaps:   closeSnaps,
	}, nil
}

// loadIndex brings the index up to date at startup. The fast path restores
// the persisted snapshot and reconciles the delta; a missing or corrupt
// snapshot falls back to a full build.
func loadIndex(ctx context.Context, ix *index.Index, snaps snapshot.Store, logger *slog.Logger) error {
	if snaps != nil {
		blob, err := snaps.Load(ctx)
		switch {
		case err == nil:
			if err := ix.RestoreSnapshot(blob); err != nil {
				logger.Warn("Snapshot restore failed, rebuilding index",
					slog.String("error", err.Error()))
				break
			}
			if _, err := ix.Reconcile(ctx); err != nil {
				logger.Warn("Startup reconcile failed", slog.String("error", err.Error()))
			}
			return nil
		case errors.Is(err, apperr.ErrNotFound):
			logger.Info("No snapshot found, building index from vault")
		default:
			logger.Warn("Snapshot load failed, rebuilding index",
				slog.String("error", err.Error()))
		}
	}
	return ix.BuildFull(ctx)
}

// RunAsk answers one question from the terminal. Progress is written to
// stderr so stdout carries only the answer.
func RunAsk(ctx context.Context, cfg *Config, question string) error {
	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	sys, err := openSystem(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer sys.close(logger)

	if err := loadIndex(ctx, sys.index, sys.snaps, logger); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	streamed := false
	for ev := range sys.orchestrator.AskStream(ctx, question) {
		switch ev.Type {
		case agent.EventToolStart:
			args, _ := json.Marshal(ev.Args)
			fmt.Fprintf(os.Stderr, "[%d] %s %s\n", ev.Iteration, ev.Tool, args)
		case agent.EventToolResult:
			if ev.Error != "" {
				fmt.Fprintf(os.Stderr, "[%d] %s failed: %s\n", ev.Iteration, ev.Tool, ev.Error)
			} else {
				fmt.Fprintf(os.Stderr, "[%d] %s found %d\n", ev.Iteration, ev.Tool, ev.Found)
			}
		case agent.EventResponseChunk:
			streamed = true
			fmt.Print(ev.Chunk)
		case agent.EventResponseEnd:
			if streamed {
				fmt.Println()
			}
			if ev.Error != "" {
				return fmt.Errorf("ask: %s", ev.Error)
			}
			// Text-mode answers are not chunked; print the final text.
			if !streamed && ev.Answer != nil {
				fmt.Println(ev.Answer.Text)
			}
		}
	}
	return nil
}

// RunReindex rebuilds the index from the vault and exits. The result is
// persisted when a snapshot store is configured.
func RunReindex(ctx context.Context, cfg *Config) error {
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	sys, err := openSystem(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer sys.close(logger)

	if err := sys.index.BuildFull(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	st := sys.index.Stats()
	logger.Info("Index rebuilt",
		slog.Int("documents", st.Documents),
		slog.Int("embeddings", st.Embeddings),
		slog.Int("connections", st.Connections))
	return nil
}

// RunMCP serves the tool catalog over MCP stdio. Logs go to stderr because
// stdout carries the protocol frames.
func RunMCP(ctx context.Context, cfg *Config) error {
	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	sys, err := openSystem(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer sys.close(logger)

	if err := loadIndex(ctx, sys.index, sys.snaps, logger); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	// Keep the index fresh for the duration of the session.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(wctx, sys.index, sys.files, logger); err != nil {
			logger.Warn("File watcher stopped", slog.String("error", err.Error()))
		}
	}()
	go func() { _ = sys.index.Run(wctx) }()

	logger.Info("MCP server listening on stdio")
	return mcpserver.New(sys.registry).ServeStdio()
}
