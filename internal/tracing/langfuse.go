// Package tracing wires optional Langfuse tracing into the eino callback
// system so every chat model call made by the assistant is recorded.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/desfrut-go/internal/config"
)

// Setup builds the Langfuse callback handler when both keys are configured.
// The returned flush function must be called before process exit so queued
// traces are sent. When tracing is not configured it returns (nil, nil, false).
func Setup(cfg config.TracingConfig) (callbacks.Handler, func(), bool) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})

	return handler, flusher, true
}

// Install registers the Langfuse handler globally when configured and
// returns a flush function that is always safe to call.
func Install(cfg config.TracingConfig) (func(), bool) {
	handler, flush, ok := Setup(cfg)
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flush, true
}
