package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/desfrut-go/internal/config"
	"github.com/54b3r/desfrut-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOllamaModel = "nomic-embed-text"
)

// Backend resolves the embedding backend: EMBEDDING_PROVIDER when set,
// otherwise the chat provider when it can also embed, otherwise openai.
func Backend(cfg *config.Config) string {
	if p := strings.ToLower(cfg.Embedding.Provider); p != "" {
		return p
	}
	switch p := strings.ToLower(cfg.Model.Provider); p {
	case "openai", "azure", "ollama":
		return p
	default:
		return "openai"
	}
}

// New constructs the rag.Embedder selected by cfg, wrapped in a [Throttled]
// limiter when EMBEDDING_RPS is set.
func New(cfg *config.Config, log *slog.Logger) (rag.Embedder, error) {
	backend := Backend(cfg)
	model := cfg.Embedding.Model

	var emb rag.Embedder
	switch backend {
	case "openai":
		if err := cfg.RequireOpenAIKey(log); err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		if model == "" {
			model = defaultOpenAIModel
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.OpenAI.BaseURL, "/"),
			APIKey:     cfg.OpenAI.APIKey,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
		})

	case "azure":
		az := cfg.Model.Azure
		if az.APIKey == "" {
			return nil, fmt.Errorf("embedder: %w: azure requires AZURE_OPENAI_API_KEY", config.ErrMissingCredential)
		}
		if az.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT")
		}
		if model == "" {
			model = defaultOpenAIModel
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(az.Endpoint, "/") + "/openai",
			APIKey:     az.APIKey,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
			Azure:      true,
			APIVersion: az.APIVersion,
		})

	case "ollama":
		// The global default names an OpenAI model; swap it for the local one.
		if model == "" || model == defaultOpenAIModel {
			model = defaultOllamaModel
		}
		emb = NewOllamaEmbedder(&OllamaConfig{
			Host:  strings.TrimRight(cfg.Model.OllamaHost, "/"),
			Model: model,
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: openai, azure, ollama)", backend)
	}

	warnIfChatModel(log, model)

	if cfg.Embedding.RPS > 0 {
		throttled, err := NewThrottled(emb, cfg.Embedding.RPS)
		if err != nil {
			return nil, err
		}
		return throttled, nil
	}
	return emb, nil
}
