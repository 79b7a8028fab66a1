package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for /ask metrics.
const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
)

// labelHandler partitions HTTP metrics by route pattern rather than raw path.
const labelHandler = "handler"

// Metrics holds all Prometheus metrics owned by the front end. It is created
// once per process and shared with the context builder so retrieval
// failures are counted next to request outcomes.
type Metrics struct {
	// askRequestsTotal counts completed /ask requests by outcome.
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records /ask latency from receipt to response.
	askDurationSeconds *prometheus.HistogramVec

	// retrievalFailuresTotal counts collections that failed to answer a
	// retrieval and were replaced by a placeholder.
	retrievalFailuresTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the metric set against reg. promauto.With(reg) keeps
// unit tests hermetic when given a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desfrut",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desfrut",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /ask requests including retrieval and generation.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		retrievalFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desfrut",
			Subsystem: "retrieval",
			Name:      "failures_total",
			Help:      "Retrievals that failed and were replaced by a placeholder, partitioned by collection.",
		}, []string{"collection"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desfrut",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desfrut",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// ObserveRetrievalError counts a failed retrieval. Its signature matches
// assistant.BuilderConfig.OnRetrievalError.
func (m *Metrics) ObserveRetrievalError(collection string, _ error) {
	m.retrievalFailuresTotal.WithLabelValues(collection).Inc()
}

// observeAsk records the outcome and duration of one /ask request.
func (m *Metrics) observeAsk(outcome string, start time.Time) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// instrument wraps the mux so every request is counted under the pattern the
// mux matched. ServeMux sets Request.Pattern on the request it receives.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
