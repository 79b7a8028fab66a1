package server

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/desfrut-go/internal/assistant"
	"github.com/54b3r/desfrut-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0).
	Host string
	// Port is the TCP port to listen on (default: 5000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single /ask call including retrieval and generation.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks.
	Pingers []Pinger
	// History receives every successful answer. Optional.
	History store.AnswerLog
	// Metrics is the metric set shared with the context builder. If nil, a
	// new set is registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where a new metric set is registered.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
	// Version is shown in the page footer.
	Version string
}

// answerer is the interface handleAsk calls to answer a question.
// *assistant.Answerer satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question string) (*assistant.Answer, error)
}

// Server is the HTTP front end for the shop assistant.
type Server struct {
	// answerer produces answers for POST /ask.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// history records answered questions; nil disables recording.
	history store.AnswerLog
	// metrics holds the Prometheus collectors for this server.
	metrics *Metrics
	// page is the parsed index template.
	page *template.Template
}

// askRequest is the JSON body for POST /ask.
type askRequest struct {
	// Question is the customer's question.
	Question string `json:"question"`
}

// askResponse is the JSON body returned by a successful POST /ask.
type askResponse struct {
	// Answer is the model reply.
	Answer string `json:"answer"`
	// Fontes lists the sources the answer's context came from.
	Fontes []string `json:"fontes"`
}

// errorResponse is the JSON body returned by any failed POST /ask.
type errorResponse struct {
	Error string `json:"error"`
}
