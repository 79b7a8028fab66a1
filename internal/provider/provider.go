// Package provider selects and constructs the chat completion backend used
// by the assistant. Supported backends: OpenAI, Azure OpenAI, Ollama,
// Google Gemini, Volcengine Ark.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/desfrut-go/internal/config"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// Config holds the resolved settings for one chat backend.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name, or the deployment name on Azure.
	Model string

	// BaseURL is the API endpoint (OpenAI base URL, Azure resource endpoint,
	// Ollama host or Ark base URL).
	BaseURL string

	// APIKey is the credential for the selected provider. Unused by Ollama.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int

	// Temperature is the default sampling temperature.
	Temperature float32
}

// FromConfig extracts the chat backend settings from the application config.
func FromConfig(cfg *config.Config) *Config {
	c := &Config{
		Backend:     Backend(strings.ToLower(cfg.Model.Provider)),
		Model:       cfg.Model.Name,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	}
	switch c.Backend {
	case BackendOpenAI:
		c.APIKey = cfg.OpenAI.APIKey
		c.BaseURL = cfg.OpenAI.BaseURL
	case BackendAzure:
		c.APIKey = cfg.Model.Azure.APIKey
		c.BaseURL = cfg.Model.Azure.Endpoint
		c.AzureAPIVersion = cfg.Model.Azure.APIVersion
		if cfg.Model.Azure.Deployment != "" {
			c.Model = cfg.Model.Azure.Deployment
		}
	case BackendOllama:
		c.BaseURL = cfg.Model.OllamaHost
	case BackendGemini:
		c.APIKey = cfg.Model.GeminiAPIKey
	case BackendArk:
		c.APIKey = cfg.Model.Ark.APIKey
		c.BaseURL = cfg.Model.Ark.BaseURL
	}
	return c
}

// Validate reports the first missing setting for the selected backend.
// Missing credentials wrap [config.ErrMissingCredential].
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("provider: GEN_MODEL is required for %s backend", c.Backend)
	}
	switch c.Backend {
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %w: OPENAI_API_KEY is required for openai backend", config.ErrMissingCredential)
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %w: AZURE_OPENAI_API_KEY is required for azure backend", config.ErrMissingCredential)
		}
		if c.BaseURL == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
	case BackendOllama:
		if c.BaseURL == "" {
			return fmt.Errorf("provider: OLLAMA_HOST is required for ollama backend")
		}
	case BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %w: GOOGLE_API_KEY is required for gemini backend", config.ErrMissingCredential)
		}
	case BackendArk:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %w: ARK_API_KEY is required for ark backend", config.ErrMissingCredential)
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: openai, azure, ollama, gemini, ark)", c.Backend)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.MaxTokens)
	}
	return nil
}

// New validates cfg and constructs the chat model for its backend.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		return newArk(ctx, cfg)
	}
}
