package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediashare",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediashare",
		Name:      "ingest_queue_depth",
		Help:      "Items waiting in or being processed by the ingestion queue.",
	})

	IngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "ingested_items_total",
		Help:      "Ingested items by outcome (created, updated, duplicate, failed, malformed).",
	}, []string{"outcome"})

	EnrichmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "enrichment_total",
		Help:      "Metadata enrichment attempts by outcome (linked, created, miss, failed).",
	}, []string{"outcome"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "query_cache_hits_total",
		Help:      "Total number of query cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "query_cache_misses_total",
		Help:      "Total number of query cache misses.",
	})

	CacheInvalidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "query_cache_invalidations_total",
		Help:      "Total number of wholesale query cache invalidations.",
	})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "provider_requests_total",
		Help:      "Requests to metadata providers by provider, endpoint and status.",
	}, []string{"provider", "endpoint", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediashare",
		Name:      "provider_request_duration_seconds",
		Help:      "Metadata provider request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	TransportCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "transport_calls_total",
		Help:      "Messaging transport calls by method and status.",
	}, []string{"method", "status"})

	OperationItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediashare",
		Name:      "operation_items_total",
		Help:      "Items handled by bulk operations by kind and result.",
	}, []string{"kind", "result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QueueDepth,
		IngestedTotal,
		EnrichmentTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheInvalidationsTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		TransportCallsTotal,
		OperationItemsTotal,
	)
}
