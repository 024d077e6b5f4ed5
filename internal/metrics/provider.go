package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "knowchain"

// Provider call kinds.
const (
	KindEmbedding = "embedding"
	KindChat      = "chat"
)

// Model provider Prometheus metrics, shared by embedding and chat calls.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Model provider requests by kind and outcome",
		},
		[]string{"kind", "provider", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Successful model provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"kind", "provider", "model"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens reported by the model provider",
		},
		[]string{"kind", "provider", "model", "type"},
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Model provider failures by reason",
		},
		[]string{"kind", "provider", "model", "reason"},
	)

	EmbeddingBatchInputs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_batch_inputs",
			Help:      "Texts sent in one embedding request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerProviderOnce sync.Once

// RegisterProviderMetrics registers the model provider metrics. Safe to call more than once.
func RegisterProviderMetrics() {
	registerProviderOnce.Do(func() {
		prometheus.MustRegister(
			ProviderRequestsTotal,
			ProviderRequestDuration,
			ProviderTokensTotal,
			ProviderErrorsTotal,
			EmbeddingBatchInputs,
			EmbeddingCacheTotal,
		)
	})
}

// ProviderCall labels the metrics of one provider endpoint.
type ProviderCall struct {
	Kind     string
	Provider string
	Model    string
}

// Failed counts a failed request.
func (c ProviderCall) Failed(reason string) {
	ProviderRequestsTotal.WithLabelValues(c.Kind, c.Provider, c.Model, "error").Inc()
	ProviderErrorsTotal.WithLabelValues(c.Kind, c.Provider, c.Model, reason).Inc()
}

// Succeeded counts a successful request, its duration and the tokens it used.
// Token types with a zero count are skipped.
func (c ProviderCall) Succeeded(d time.Duration, tokens map[string]int) {
	ProviderRequestsTotal.WithLabelValues(c.Kind, c.Provider, c.Model, "success").Inc()
	ProviderRequestDuration.WithLabelValues(c.Kind, c.Provider, c.Model).Observe(d.Seconds())
	for typ, n := range tokens {
		if n > 0 {
			ProviderTokensTotal.WithLabelValues(c.Kind, c.Provider, c.Model, typ).Add(float64(n))
		}
	}
}
