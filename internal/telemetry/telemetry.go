// Package telemetry exposes prometheus instrumentation for provider calls
// and pipeline runs.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litfuse",
		Name:      "provider_requests_total",
		Help:      "External provider requests by provider and outcome.",
	}, []string{"provider", "outcome"}) // outcome: ok | transient | permanent | not_found | cancelled

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "litfuse",
		Name:      "provider_request_seconds",
		Help:      "External provider request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litfuse",
		Name:      "breaker_trips_total",
		Help:      "Circuit breaker trips by provider.",
	}, []string{"provider"})

	CacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litfuse",
		Name:      "entity_cache_events_total",
		Help:      "Entity resolver cache hits and misses.",
	}, []string{"event"}) // event: hit | miss

	PipelineSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "litfuse",
		Name:      "pipeline_step_seconds",
		Help:      "Pipeline step execution time by action.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
