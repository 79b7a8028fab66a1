// Package config provides layered configuration for desfrut.
// Values resolve with the precedence: defaults → YAML file → env vars.
// Environment variables always win, so a deployment can be driven from
// env alone (or a .env file loaded before [Load]).
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DESFRUT_CONFIG environment variable
//  3. ~/.desfrut/config.yaml
//  4. ./desfrut.yaml
//
// If no file is found the system runs entirely from env vars and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a backend that needs an API key is
// selected but no key was configured.
var ErrMissingCredential = errors.New("config: missing credential")

// HistoryDisabled is the HISTORY_DB value that turns the answer log off.
const HistoryDisabled = "disabled"

// Config is the fully resolved configuration.
type Config struct {
	// OpenAI holds the OpenAI credential shared by chat and embeddings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Model configures the chat completion backend.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Store selects and configures the vector store.
	Store StoreConfig `yaml:"store"`

	// Collections names the two vector collections.
	Collections CollectionsConfig `yaml:"collections"`

	// Retrieval configures nearest-neighbour queries.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Ingest configures the two ingestion pipelines.
	Ingest IngestConfig `yaml:"ingest"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures the SQLite answer log.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// OpenAIConfig holds OpenAI account settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `yaml:"base_url"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: openai, azure, ollama, gemini, ark.
	Provider string `yaml:"provider"`
	// Name is the model (or deployment) name passed to the backend.
	Name string `yaml:"name"`
	// Temperature controls response randomness.
	Temperature float32 `yaml:"temperature"`
	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`
	// GeminiAPIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// Azure holds Azure OpenAI settings.
	Azure AzureConfig `yaml:"azure"`
	// Ark holds Volcengine Ark settings.
	Ark ArkConfig `yaml:"ark"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI chat deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcengine Ark settings.
type ArkConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (openai, azure, ollama).
	// Empty means "follow Model.Provider when it can embed, else openai".
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size (0 = model default).
	Dimensions int `yaml:"dimensions"`
	// RPS caps outbound embedding requests per second (0 = unlimited).
	RPS float64 `yaml:"rps"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Backend is "local" (bbolt files under Dir) or "qdrant".
	Backend string `yaml:"backend"`
	// Dir is the local store directory.
	Dir string `yaml:"dir"`
	// Qdrant holds the Qdrant connection settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// CollectionsConfig names the manual and product collections.
type CollectionsConfig struct {
	Manual   string `yaml:"manual"`
	Products string `yaml:"products"`
}

// RetrievalConfig holds query settings.
type RetrievalConfig struct {
	// TopK is the number of neighbours fetched per collection.
	TopK int `yaml:"top_k"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// PDF is the manual file path.
	PDF string `yaml:"pdf"`
	// CSV is the product catalog path.
	CSV string `yaml:"csv"`
	// ChunkSize is the manual chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// BatchSize is the number of products embedded per request.
	BatchSize int `yaml:"batch_size"`
	// Pdftotext is the pdftotext binary used for page extraction.
	Pdftotext string `yaml:"pdftotext"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds answer log settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// Default returns the configuration used when neither a file nor env vars
// say otherwise.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{BaseURL: "https://api.openai.com/v1"},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1024,
			OllamaHost:  "http://localhost:11434",
			Azure:       AzureConfig{APIVersion: "2024-06-01"},
		},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
		Store: StoreConfig{
			Backend: "local",
			Dir:     "chroma",
			Qdrant:  QdrantConfig{Host: "localhost", Port: 6334},
		},
		Collections: CollectionsConfig{
			Manual:   "desfrut_apostila",
			Products: "desfrut_produtos",
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Ingest: IngestConfig{
			PDF:          "data/apostila.pdf",
			CSV:          "data/produtos.csv",
			ChunkSize:    1000,
			ChunkOverlap: 150,
			BatchSize:    64,
			Pdftotext:    "pdftotext",
		},
		Server:  ServerConfig{Host: "0.0.0.0", Port: 5000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		History: HistoryConfig{DBPath: "history.db"},
		Tracing: TracingConfig{Host: "http://localhost:3000"},
	}
}

// envMapping binds env var names to the Config field they override.
// Empty env values are ignored.
var envMapping = []struct {
	envKey string
	apply  func(*Config, string) error
}{
	{"OPENAI_API_KEY", setString(func(c *Config) *string { return &c.OpenAI.APIKey })},
	{"OPENAI_BASE_URL", setString(func(c *Config) *string { return &c.OpenAI.BaseURL })},
	{"MODEL_PROVIDER", setString(func(c *Config) *string { return &c.Model.Provider })},
	{"GEN_MODEL", setString(func(c *Config) *string { return &c.Model.Name })},
	{"MODEL_TEMPERATURE", setFloat32(func(c *Config) *float32 { return &c.Model.Temperature })},
	{"MODEL_MAX_TOKENS", setInt(func(c *Config) *int { return &c.Model.MaxTokens })},
	{"OLLAMA_HOST", setString(func(c *Config) *string { return &c.Model.OllamaHost })},
	{"GOOGLE_API_KEY", setString(func(c *Config) *string { return &c.Model.GeminiAPIKey })},
	{"AZURE_OPENAI_API_KEY", setString(func(c *Config) *string { return &c.Model.Azure.APIKey })},
	{"AZURE_OPENAI_ENDPOINT", setString(func(c *Config) *string { return &c.Model.Azure.Endpoint })},
	{"AZURE_OPENAI_DEPLOYMENT", setString(func(c *Config) *string { return &c.Model.Azure.Deployment })},
	{"AZURE_OPENAI_API_VERSION", setString(func(c *Config) *string { return &c.Model.Azure.APIVersion })},
	{"ARK_API_KEY", setString(func(c *Config) *string { return &c.Model.Ark.APIKey })},
	{"ARK_BASE_URL", setString(func(c *Config) *string { return &c.Model.Ark.BaseURL })},
	{"EMBEDDING_PROVIDER", setString(func(c *Config) *string { return &c.Embedding.Provider })},
	{"EMBED_MODEL", setString(func(c *Config) *string { return &c.Embedding.Model })},
	{"EMBEDDING_DIMENSIONS", setInt(func(c *Config) *int { return &c.Embedding.Dimensions })},
	{"EMBEDDING_RPS", setFloat64(func(c *Config) *float64 { return &c.Embedding.RPS })},
	{"VECTOR_BACKEND", setString(func(c *Config) *string { return &c.Store.Backend })},
	{"CHROMA_DIR", setString(func(c *Config) *string { return &c.Store.Dir })},
	{"QDRANT_HOST", setString(func(c *Config) *string { return &c.Store.Qdrant.Host })},
	{"QDRANT_PORT", setInt(func(c *Config) *int { return &c.Store.Qdrant.Port })},
	{"QDRANT_API_KEY", setString(func(c *Config) *string { return &c.Store.Qdrant.APIKey })},
	{"QDRANT_TLS", setBool(func(c *Config) *bool { return &c.Store.Qdrant.TLS })},
	{"COL_APOSTILA", setString(func(c *Config) *string { return &c.Collections.Manual })},
	{"COL_PRODUTOS", setString(func(c *Config) *string { return &c.Collections.Products })},
	{"TOP_K", setInt(func(c *Config) *int { return &c.Retrieval.TopK })},
	{"PDF_FILENAME", setString(func(c *Config) *string { return &c.Ingest.PDF })},
	{"CSV_PATH", setString(func(c *Config) *string { return &c.Ingest.CSV })},
	{"CHUNK_SIZE", setInt(func(c *Config) *int { return &c.Ingest.ChunkSize })},
	{"CHUNK_OVERLAP", setInt(func(c *Config) *int { return &c.Ingest.ChunkOverlap })},
	{"PRODUCT_BATCH_SIZE", setInt(func(c *Config) *int { return &c.Ingest.BatchSize })},
	{"PDFTOTEXT_PATH", setString(func(c *Config) *string { return &c.Ingest.Pdftotext })},
	{"HOST", setString(func(c *Config) *string { return &c.Server.Host })},
	{"PORT", setInt(func(c *Config) *int { return &c.Server.Port })},
	{"HISTORY_DB", setString(func(c *Config) *string { return &c.History.DBPath })},
	{"LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", setString(func(c *Config) *string { return &c.Logging.Format })},
	{"LANGFUSE_PUBLIC_KEY", setString(func(c *Config) *string { return &c.Tracing.PublicKey })},
	{"LANGFUSE_SECRET_KEY", setString(func(c *Config) *string { return &c.Tracing.SecretKey })},
	{"LANGFUSE_HOST", setString(func(c *Config) *string { return &c.Tracing.Host })},
}

// Load resolves the configuration: defaults, then the first YAML file found
// (see package doc), then env var overrides. It returns the path of the YAML
// file that was applied, or "" when none was found.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	cfg := Default()

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		log.Info("config: loaded YAML config", slog.String("path", path))
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// applyEnv overwrites fields with every non-empty mapped env var.
func (c *Config) applyEnv() error {
	for _, m := range envMapping {
		v := strings.TrimSpace(os.Getenv(m.envKey))
		if v == "" {
			continue
		}
		if err := m.apply(c, v); err != nil {
			return fmt.Errorf("config: invalid %s=%q: %w", m.envKey, v, err)
		}
	}
	return nil
}

// Validate checks values that no backend can work around.
func (c *Config) Validate() error {
	switch {
	case c.Retrieval.TopK <= 0:
		return fmt.Errorf("config: top_k must be positive, got %d", c.Retrieval.TopK)
	case c.Ingest.ChunkSize <= 0:
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	case c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize:
		return fmt.Errorf("config: chunk_overlap must be in [0, %d), got %d", c.Ingest.ChunkSize, c.Ingest.ChunkOverlap)
	case c.Ingest.BatchSize <= 0:
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Ingest.BatchSize)
	case c.Collections.Manual == "" || c.Collections.Products == "":
		return errors.New("config: collection names must not be empty")
	}
	switch c.Store.Backend {
	case "local", "qdrant":
	default:
		return fmt.Errorf("config: unsupported vector backend %q (supported: local, qdrant)", c.Store.Backend)
	}
	return nil
}

// RequireOpenAIKey returns [ErrMissingCredential] when no OpenAI key is set,
// and logs a warning when the key does not look like an OpenAI secret key.
func (c *Config) RequireOpenAIKey(log *slog.Logger) error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingCredential)
	}
	if !strings.HasPrefix(c.OpenAI.APIKey, "sk-") {
		log.Warn("config: OPENAI_API_KEY does not start with sk-, requests will likely be rejected")
	}
	return nil
}

// HistoryEnabled reports whether the answer log should be opened.
func (c *Config) HistoryEnabled() bool {
	return c.History.DBPath != "" && c.History.DBPath != HistoryDisabled
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DESFRUT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".desfrut", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("desfrut.yaml"); err == nil {
		return "desfrut.yaml"
	}

	return ""
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setFloat32(field func(*Config) *float32) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return err
		}
		*field(c) = float32(f)
		return nil
	}
}

func setFloat64(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}
