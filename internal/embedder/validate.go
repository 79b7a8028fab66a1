package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"gemini",
	"phi3",
	"deepseek",
	"qwen",
	"doubao",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// warnIfChatModel logs a warning when the embedding model name looks like a
// chat model, which usually means EMBED_MODEL and GEN_MODEL were swapped.
func warnIfChatModel(log *slog.Logger, model string) {
	if model == "" || !looksLikeChatModel(model) {
		return
	}
	log.Warn("embedder: EMBED_MODEL looks like a chat model, not an embedding model",
		slog.String("model", model),
		slog.String("hint", "use a dedicated embedding model e.g. text-embedding-3-small, nomic-embed-text"),
	)
}
