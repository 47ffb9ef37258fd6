package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Pass outcomes.
const (
	PassCompleted = "completed"
	PassSuspended = "suspended"
	PassIdle      = "idle"
	PassError     = "error"
	PassIgnored   = "ignored"
)

// Embedding outcomes.
const (
	EmbeddingStored  = "stored"
	EmbeddingFailed  = "failed"
	EmbeddingFlagged = "flagged"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	nodeVisits      *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	passes          *prometheus.CounterVec
	serviceCalls    *prometheus.CounterVec
	serviceDuration *prometheus.HistogramVec
	embeddings      *prometheus.CounterVec
	ingestions      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of executed nodes by type.",
		}, []string{"node_type"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Time spent executing a node, including external calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Interpreter passes by outcome.",
		}, []string{"outcome"}),
		serviceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_calls_total",
			Help:      "Calls to external services by service and result.",
		}, []string{"service", "result"}),
		serviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_duration_seconds",
			Help:      "Latency of external service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Chunk embeddings by outcome.",
		}, []string{"outcome"}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Finished knowledge ingestions by source type and status.",
		}, []string{"type", "status"}),
	}
	reg.MustRegister(m.nodeVisits, m.nodeDuration, m.passes, m.serviceCalls, m.serviceDuration, m.embeddings, m.ingestions)
	return m
}

// Hooks returns lifecycle hooks that feed the node and service collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	if m == nil {
		return domain.LifecycleHooks{}
	}
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeDuration.WithLabelValues(string(e.NodeType)).Observe(e.Duration.Seconds())
		},
		OnServiceCall: func(ctx context.Context, e *domain.ServiceEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.serviceCalls.WithLabelValues(e.Service, result).Inc()
			m.serviceDuration.WithLabelValues(e.Service).Observe(e.Duration.Seconds())
		},
	}
}

// ObservePass counts a finished interpreter pass.
func (m *Metrics) ObservePass(outcome string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
}

// ObserveEmbedding counts one chunk embedding attempt.
func (m *Metrics) ObserveEmbedding(outcome string) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(outcome).Inc()
}

// ObserveIngestion counts a source reaching a final status.
func (m *Metrics) ObserveIngestion(typ domain.SourceType, status domain.SourceStatus) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(string(typ), string(status)).Inc()
}

// Handler serves the metrics of g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
