package observability_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeType: domain.NodeMessage})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeType: domain.NodeMessage})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{NodeType: domain.NodeMessage, Duration: time.Millisecond})
	hooks.OnServiceCall(ctx, &domain.ServiceEvent{Service: domain.ServiceLLM, Err: errors.New("429")})
	m.ObservePass(observability.PassSuspended)
	m.ObserveEmbedding(observability.EmbeddingFlagged)
	m.ObserveIngestion(domain.SourceURL, domain.SourceReady)

	count, err := testutil.GatherAndCount(reg, "parley_node_visits_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `parley_node_visits_total{node_type="message"} 2`)
	assert.Contains(t, body, `parley_service_calls_total{result="error",service="llm"} 1`)
	assert.Contains(t, body, `parley_passes_total{outcome="suspended"} 1`)
	assert.Contains(t, body, `parley_embeddings_total{outcome="flagged"} 1`)
	assert.Contains(t, body, `parley_ingestions_total{status="ready",type="url"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.ObservePass(observability.PassError)
		m.ObserveEmbedding(observability.EmbeddingFailed)
		m.ObserveIngestion(domain.SourceText, domain.SourceError)
		_ = m.Hooks()
	})
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "b") }}

	h := observability.Combine(a, domain.LifecycleHooks{}, b)
	h.OnNodeEnter(context.Background(), &domain.NodeEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, h.OnServiceCall)
}
