// Package server implements the HTTP front end of the Desfrut assistant: a
// single-page question form, the JSON /ask endpoint, health probes and
// Prometheus metrics. The server is started by the `desfrut serve` command.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/desfrut-go/internal/assistant"
	"github.com/54b3r/desfrut-go/internal/logging"
)

// maxAskBodyBytes caps the POST /ask request body.
const maxAskBodyBytes = 64 << 10

// Client-facing error messages.
const (
	msgEmptyQuestion = "Pergunta vazia."
	msgInvalidBody   = "Corpo da requisição inválido."
	msgBodyTooLarge  = "Pergunta muito longa."
)

//go:embed ui/index.html
var uiFS embed.FS

// New constructs a Server from the provided answerer and config.
func New(a answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast a full retrieval plus generation.
		cfg.WriteTimeout = cfg.AskTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.MetricsRegistry)
	}

	page, err := template.ParseFS(uiFS, "ui/index.html")
	if err != nil {
		return nil, fmt.Errorf("server: failed to parse page template: %w", err)
	}

	s := &Server{
		answerer: a,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		page:     page,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, s.metrics.instrument(mux))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleIndex renders the question page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Version string }{Version: s.cfg.Version}
	if err := s.page.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("page render failed", slog.Any("error", err))
	}
}

// handleAsk handles POST /ask. A blank question is rejected before the
// answerer is invoked; any answerer failure is reported as a 500.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		status, msg := http.StatusBadRequest, msgInvalidBody
		if errors.As(err, &tooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, msgBodyTooLarge
		}
		log.Warn("ask: rejected request body", slog.Any("error", err))
		s.metrics.observeAsk(outcomeInvalid, start)
		writeJSON(r.Context(), w, status, errorResponse{Error: msg})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.metrics.observeAsk(outcomeInvalid, start)
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: msgEmptyQuestion})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	ans, err := s.answerer.Answer(ctx, question)
	if err != nil {
		outcome := outcomeError
		switch {
		case errors.Is(err, assistant.ErrEmptyQuestion):
			s.metrics.observeAsk(outcomeInvalid, start)
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: msgEmptyQuestion})
			return
		case errors.Is(err, context.DeadlineExceeded):
			outcome = outcomeTimeout
		}
		log.Error("ask failed", slog.String("outcome", outcome), slog.Any("error", err))
		s.metrics.observeAsk(outcome, start)
		writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}

	if s.history != nil {
		if err := s.history.Record(r.Context(), question, ans.Text, sources); err != nil {
			log.Warn("history: failed to record answer", slog.Any("error", err))
		}
	}

	log.Info("ask answered",
		slog.Int("sources", len(sources)),
		slog.Duration("duration", time.Since(start)),
	)
	s.metrics.observeAsk(outcomeOK, start)
	writeJSON(r.Context(), w, http.StatusOK, askResponse{Answer: ans.Text, Fontes: sources})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("response encode error", slog.Any("error", err))
	}
}
