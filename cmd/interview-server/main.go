// Command interview-server runs the interview backend: it accepts resume
// uploads, drives question generation through the configured LLM, stores
// sessions, and optionally indexes answers for semantic search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/config"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/health"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/observe"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/question"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/server"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
	pgstore "github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store/postgres"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/embeddings"
	oaembed "github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/embeddings/openai"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/llm"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/llm/anyllm"
	oaillm "github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/llm/openai"
)

const version = "0.1.0"

const (
	defaultListenAddr = ":8080"
	defaultLLMModel   = "llama-3.3-70b-versatile"
	defaultEmbedDims  = 1536
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "interview-server: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "interview-server: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	slog.Info("interview-server starting",
		"version", version,
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "interview-server",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "err", err)
		return 1
	}

	generator, err := question.NewGenerator(llmProvider)
	if err != nil {
		slog.Error("failed to create question generator", "err", err)
		return 1
	}

	embedder, err := buildEmbedder(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("failed to create embeddings provider", "err", err)
		return 1
	}

	opts := []server.Option{
		server.WithLogger(logger),
	}
	if cfg.Server.MaxResumeBytes > 0 {
		opts = append(opts, server.WithMaxResumeBytes(cfg.Server.MaxResumeBytes))
	}
	if cfg.Interview.TotalTurns > 0 {
		opts = append(opts, server.WithTotalTurns(cfg.Interview.TotalTurns))
	}

	var sessions store.SessionStore
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		dims := cfg.Storage.EmbeddingDimensions
		if dims <= 0 {
			dims = defaultEmbedDims
		}
		pg, err := pgstore.NewStore(ctx, dsn, dims)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		sessions = pg
		opts = append(opts, server.WithReadinessCheck(health.Checker{
			Name:  "database",
			Check: pg.Ping,
		}))
		if embedder != nil {
			opts = append(opts, server.WithAnswerIndex(pg, embedder))
		}
		slog.Info("session store ready", "backend", "postgres", "embedding_dims", dims)
	} else {
		mem := store.NewMemStore()
		sessions = mem
		if embedder != nil {
			opts = append(opts, server.WithAnswerIndex(mem, embedder))
		}
		slog.Info("session store ready", "backend", "memory")
	}

	srv, err := server.New(sessions, generator, opts...)
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildLLM creates the interviewer LLM from the configured provider entry.
// An empty entry defaults to Groq with llama-3.3-70b-versatile, reading
// GROQ_API_KEY from the environment.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	model := entry.Model
	if model == "" {
		model = defaultLLMModel
	}

	// The native OpenAI client supports per-request timeouts, so prefer it
	// when the entry names openai and carries a key.
	if entry.Name == "openai" && entry.APIKey != "" {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		p, err := oaillm.New(entry.APIKey, model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai llm: %w", err)
		}
		slog.Info("provider created", "kind", "llm", "name", "openai", "model", model)
		return p, nil
	}

	name := entry.Name
	if name == "" {
		name = "groq"
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	p, err := anyllm.New(name, model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", name, "model", model)
	return p, nil
}

// buildEmbedder creates the answer-index embeddings provider, or returns nil
// when none is configured. Answer indexing is optional; the interview works
// without it.
func buildEmbedder(entry config.ProviderEntry) (embeddings.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	if entry.Name != "openai" {
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
	var opts []oaembed.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
	}
	p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}
	slog.Info("provider created", "kind", "embeddings", "name", entry.Name)
	return p, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
