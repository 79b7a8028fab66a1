// Package audit provides a structured audit logger for CLI command invocations.
// It logs the command name, config file source, and the resolved settings
// that decide where data goes, without exposing secret values.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/desfrut-go/internal/config"
)

// secretKeys lists setting names whose values must never be logged.
// Only presence ("set") or absence ("unset") is recorded.
var secretKeys = map[string]bool{
	"OPENAI_API_KEY":       true,
	"AZURE_OPENAI_API_KEY": true,
	"GOOGLE_API_KEY":       true,
	"ARK_API_KEY":          true,
	"QDRANT_API_KEY":       true,
	"LANGFUSE_PUBLIC_KEY":  true,
	"LANGFUSE_SECRET_KEY":  true,
}

// auditEntry defines a resolved setting to include in the audit log.
type auditEntry struct {
	// key is the env var name the setting is known by.
	key string
	// value extracts the resolved value from the config.
	value func(*config.Config) string
}

// auditKeys is the ordered list of settings included in every audit entry.
var auditKeys = []auditEntry{
	{"MODEL_PROVIDER", func(c *config.Config) string { return c.Model.Provider }},
	{"GEN_MODEL", func(c *config.Config) string { return c.Model.Name }},
	{"OPENAI_API_KEY", func(c *config.Config) string { return c.OpenAI.APIKey }},
	{"AZURE_OPENAI_API_KEY", func(c *config.Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *config.Config) string { return c.Model.Azure.Endpoint }},
	{"GOOGLE_API_KEY", func(c *config.Config) string { return c.Model.GeminiAPIKey }},
	{"ARK_API_KEY", func(c *config.Config) string { return c.Model.Ark.APIKey }},
	{"EMBEDDING_PROVIDER", func(c *config.Config) string { return c.Embedding.Provider }},
	{"EMBED_MODEL", func(c *config.Config) string { return c.Embedding.Model }},
	{"VECTOR_BACKEND", func(c *config.Config) string { return c.Store.Backend }},
	{"CHROMA_DIR", func(c *config.Config) string { return c.Store.Dir }},
	{"QDRANT_HOST", func(c *config.Config) string { return c.Store.Qdrant.Host }},
	{"QDRANT_API_KEY", func(c *config.Config) string { return c.Store.Qdrant.APIKey }},
	{"COL_APOSTILA", func(c *config.Config) string { return c.Collections.Manual }},
	{"COL_PRODUTOS", func(c *config.Config) string { return c.Collections.Products }},
	{"TOP_K", func(c *config.Config) string { return strconv.Itoa(c.Retrieval.TopK) }},
	{"HISTORY_DB", func(c *config.Config) string { return c.History.DBPath }},
	{"LOG_LEVEL", func(c *config.Config) string { return c.Logging.Level }},
	{"LANGFUSE_PUBLIC_KEY", func(c *config.Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *config.Config) string { return c.Tracing.SecretKey }},
}

// LogCommandStart emits a structured audit log entry when a CLI command begins.
func LogCommandStart(log *slog.Logger, command string, configPath string, cfg *config.Config) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}
	for _, entry := range auditKeys {
		attrs = append(attrs, slog.String(entry.key, SanitiseKey(entry.key, entry.value(cfg))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
