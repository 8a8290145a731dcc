package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	fetchAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "randombark",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Total number of fetch attempts started.",
		},
	)

	fetchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "randombark",
			Subsystem: "fetch",
			Name:      "inflight",
			Help:      "Fetch attempts started but not yet resolved.",
		},
	)

	fetchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "randombark",
			Subsystem: "fetch",
			Name:      "results_total",
			Help:      "Resolved fetch attempts by status and error kind.",
		},
		[]string{"status", "kind"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "randombark",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of fetch attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"status"},
	)

	repeatImages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "randombark",
			Subsystem: "images",
			Name:      "repeats_total",
			Help:      "Successful fetches that returned an image already seen.",
		},
	)

	sinkEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "randombark",
			Subsystem: "sink",
			Name:      "events_total",
			Help:      "Terminal states handed to sinks by outcome (delivered, failed, dropped).",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "randombark",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		fetchAttempts,
		fetchInFlight,
		fetchResults,
		fetchDuration,
		repeatImages,
		sinkEvents,
		httpRequests,
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordFetchStarted counts a new attempt.
func RecordFetchStarted() {
	fetchAttempts.Inc()
	fetchInFlight.Inc()
}

// RecordFetchFinished records a resolved attempt. kind is empty on success.
func RecordFetchFinished(status, kind string, duration time.Duration) {
	if kind == "" && status != "success" {
		kind = "unknown"
	}
	fetchInFlight.Dec()
	fetchResults.WithLabelValues(status, kind).Inc()
	fetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRepeatImage counts a success whose image had been seen before.
func RecordRepeatImage() { repeatImages.Inc() }

// Sink outcomes.
const (
	SinkDelivered = "delivered"
	SinkFailed    = "failed"
	SinkDropped   = "dropped"
)

// RecordSinkEvent counts a sink outcome.
func RecordSinkEvent(outcome string) {
	sinkEvents.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest counts an API request. path should be the route template.
func RecordHTTPRequest(method, path string, status int) {
	if path == "" {
		path = "unmatched"
	}
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
