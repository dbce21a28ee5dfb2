package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	timelineRequestsTotal  *prometheus.CounterVec
	timelineLatencySeconds *prometheus.HistogramVec
	timelineEntriesCount   prometheus.Histogram
	invalidationsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the timeline API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_http_requests_total",
			Help: "Total number of timeline API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timeline_http_latency_seconds",
			Help:    "Latency distribution for timeline API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_http_errors_total",
			Help: "Total number of error responses returned by timeline endpoints.",
		}, []string{"method", "route", "status"})

		timelineRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_builds_total",
			Help: "Timeline builds by output format and cache result.",
		}, []string{"format", "result"})

		timelineLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timeline_build_latency_seconds",
			Help:    "Time spent building a timeline, cache lookups included.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"format"})

		timelineEntriesCount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeline_entries",
			Help:    "Number of entries returned per built timeline.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		})

		invalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_cache_invalidations_total",
			Help: "Cache invalidations triggered by activity events.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			timelineRequestsTotal,
			timelineLatencySeconds,
			timelineEntriesCount,
			invalidationsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TimelineRequests counts timeline builds by format and result.
func TimelineRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return timelineRequestsTotal
}

// TimelineLatency exposes the build latency histogram.
func TimelineLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return timelineLatencySeconds
}

func TimelineEntries() prometheus.Histogram {
	RegisterMetrics()
	return timelineEntriesCount
}

// Invalidations counts cache invalidations.
func Invalidations() *prometheus.CounterVec {
	RegisterMetrics()
	return invalidationsTotal
}
