package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/desfrut-go/internal/assistant"
	"github.com/54b3r/desfrut-go/internal/config"
	"github.com/54b3r/desfrut-go/internal/embedder"
	"github.com/54b3r/desfrut-go/internal/provider"
	"github.com/54b3r/desfrut-go/internal/rag"
	"github.com/54b3r/desfrut-go/internal/server"
	"github.com/54b3r/desfrut-go/internal/store"
)

// vectorStore is a rag.VectorStore that can also report readiness.
// Both LocalStore and QdrantStore satisfy it.
type vectorStore interface {
	rag.VectorStore
	server.Pinger
}

// openVectorStore opens the configured vector store backend.
func openVectorStore(cfg *config.Config, log *slog.Logger) (vectorStore, error) {
	switch cfg.Store.Backend {
	case "qdrant":
		s, err := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:   cfg.Store.Qdrant.Host,
			Port:   cfg.Store.Qdrant.Port,
			APIKey: cfg.Store.Qdrant.APIKey,
			UseTLS: cfg.Store.Qdrant.TLS,
		})
		if err != nil {
			return nil, err
		}
		log.Info("vector store ready",
			slog.String("backend", "qdrant"),
			slog.String("host", cfg.Store.Qdrant.Host),
			slog.Int("port", cfg.Store.Qdrant.Port),
		)
		return s, nil
	default:
		s, err := rag.NewLocalStore(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		log.Info("vector store ready", slog.String("backend", "local"), slog.String("dir", s.Dir()))
		return s, nil
	}
}

// openHistory opens the answer log unless it is disabled. Failure to open is
// logged and treated as disabled so it never blocks answering.
func openHistory(cfg *config.Config, log *slog.Logger) *store.SQLiteLog {
	if !cfg.HistoryEnabled() {
		log.Info("history: disabled via HISTORY_DB=disabled")
		return nil
	}
	l, err := store.Open(cfg.History.DBPath)
	if err != nil {
		log.Warn("history: failed to open answer log, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: answer log opened", slog.String("path", cfg.History.DBPath))
	return l
}

// assistantDeps is everything needed to answer questions.
type assistantDeps struct {
	answerer *assistant.Answerer
	store    vectorStore
	backend  provider.Backend
	embedder string
}

// buildAssistant wires the embedder, vector store, retriever, chat model and
// answerer. onRetrievalError may be nil. The caller owns deps.store.
func buildAssistant(ctx context.Context, cfg *config.Config, log *slog.Logger, onRetrievalError func(string, error)) (*assistantDeps, error) {
	emb, err := embedder.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	providerCfg := provider.FromConfig(cfg)
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.Model),
	)

	vs, err := openVectorStore(cfg, log)
	if err != nil {
		return nil, err
	}

	warnEmptyCollections(ctx, vs, log, cfg.Collections.Manual, cfg.Collections.Products)

	retriever, err := rag.NewRetriever(emb, vs, cfg.Retrieval.TopK)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	builder, err := assistant.NewContextBuilder(assistant.BuilderConfig{
		Retriever:         retriever,
		ManualCollection:  cfg.Collections.Manual,
		ProductCollection: cfg.Collections.Products,
		TopK:              cfg.Retrieval.TopK,
		OnRetrievalError:  onRetrievalError,
	})
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	answerer, err := assistant.New(&assistant.Config{
		ChatModel:   chatModel,
		Builder:     builder,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	return &assistantDeps{
		answerer: answerer,
		store:    vs,
		backend:  providerCfg.Backend,
		embedder: embedder.Backend(cfg),
	}, nil
}

// warnEmptyCollections logs a warning for every collection that holds no
// records, which usually means an ingestion step was never run. Answers still
// work: an empty collection just contributes no context.
func warnEmptyCollections(ctx context.Context, vs rag.VectorStore, log *slog.Logger, collections ...string) {
	for _, c := range collections {
		n, err := vs.Count(ctx, c)
		switch {
		case err != nil:
			log.Warn("vector store: failed to count collection", slog.String("collection", c), slog.Any("error", err))
		case n == 0:
			log.Warn("vector store: collection is empty, run `desfrut ingest` first", slog.String("collection", c))
		default:
			log.Debug("vector store: collection ready", slog.String("collection", c), slog.Int("records", n))
		}
	}
}

// buildPingers returns the readiness probes for the serving process. Ollama
// is probed through its model list endpoint, which costs no tokens.
func buildPingers(cfg *config.Config, deps *assistantDeps, history *store.SQLiteLog) []server.Pinger {
	pingers := []server.Pinger{deps.store}
	if history != nil {
		pingers = append(pingers, history)
	}
	if deps.backend == provider.BackendOllama || deps.embedder == string(provider.BackendOllama) {
		url := strings.TrimRight(cfg.Model.OllamaHost, "/") + "/api/tags"
		pingers = append(pingers, server.NewHTTPPinger("ollama", url, nil))
	}
	return pingers
}
