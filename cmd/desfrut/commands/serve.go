package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/desfrut-go/internal/server"
	"github.com/54b3r/desfrut-go/internal/store"
	"github.com/54b3r/desfrut-go/internal/tracing"
	"github.com/54b3r/desfrut-go/internal/version"
)

// NewServeCmd constructs the `desfrut serve` command, which starts the HTTP
// server with the question page and the /ask endpoint.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Desfrut IA web server",
		Long: `Start the HTTP server.

Routes:
  GET  /            question page
  POST /ask         {"question": "..."} -> {"answer": "...", "fontes": [...]}
  GET  /api/health  liveness
  GET  /api/ready   readiness (vector store, answer log, ollama)
  GET  /metrics     Prometheus metrics

Examples:
  desfrut serve
  desfrut serve --port 8080
  VECTOR_BACKEND=qdrant desfrut serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log := appConfig, appLog
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			flush, ok := tracing.Install(cfg.Tracing)
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled", slog.String("host", cfg.Tracing.Host))
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			deps, err := buildAssistant(ctx, cfg, log, metrics.ObserveRetrievalError)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.store.Close()

			var history store.AnswerLog
			hist := openHistory(cfg, log)
			if hist != nil {
				defer hist.Close()
				history = hist
			}

			srv, err := server.New(deps.answerer, &server.Config{
				Host:    cfg.Server.Host,
				Port:    cfg.Server.Port,
				Logger:  log,
				Pingers: buildPingers(cfg, deps, hist),
				History: history,
				Metrics: metrics,
				Version: version.String(),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address to bind to (overrides HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 5000, "TCP port to listen on (overrides PORT)")

	return cmd
}
