package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline and session Prometheus metrics.
var (
	CrawlPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_pages_total",
			Help:      "Pages fetched during crawls",
		},
		[]string{"status"}, // "ok" / "error"
	)

	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts that failed and were retried",
		},
	)

	FragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Fragments produced by the splitter",
		},
		[]string{"collection"},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_batches_total",
			Help:      "Batches sent to the vector store",
		},
		[]string{"collection", "status"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Live conversation sessions",
		},
	)

	SessionEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions removed after their TTL elapsed",
		},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers ingestion and session metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(CrawlPagesTotal)
	prometheus.MustRegister(FetchRetriesTotal)
	prometheus.MustRegister(FragmentsTotal)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionEvictionsTotal)
	ingestMetricsRegistered = true
}
