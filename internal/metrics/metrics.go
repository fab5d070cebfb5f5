// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by the crawl scheduler.
const (
	OutcomeStored        = "stored"
	OutcomeEmpty         = "empty"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomeExtractFailed = "extract_failed"
)

// Cache tiers recorded on index lookups.
const (
	TierMemory  = "memory"
	TierDurable = "durable"
	TierMiss    = "miss"
)

var (
	pagesTotal                 *prometheus.CounterVec
	pageDurationSeconds        *prometheus.HistogramVec
	pipelineRunsTotal          *prometheus.CounterVec
	strategyTotal              *prometheus.CounterVec
	detectorFailuresTotal      *prometheus.CounterVec
	indexBuildsTotal           *prometheus.CounterVec
	indexBuildDurationSeconds  prometheus.Histogram
	indexLookupsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaySeconds      prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_pages_total",
				Help: "Total number of pages visited, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		pageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_page_duration_seconds",
				Help:    "Histogram of per-page fetch and extract latency, labeled by strategy.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"strategy"},
		)

		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_pipeline_runs_total",
				Help: "Total number of pipeline runs, labeled by final session status.",
			},
			[]string{"status"},
		)

		strategyTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_strategy_total",
				Help: "Total number of strategy decisions, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		detectorFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_detector_failures_total",
				Help: "Total number of technology detector failures, labeled by detector.",
			},
			[]string{"detector"},
		)

		indexBuildsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_index_builds_total",
				Help: "Total number of retrieval index builds, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		indexBuildDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestor_index_build_duration_seconds",
				Help:    "Histogram of retrieval index build durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		indexLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_index_lookups_total",
				Help: "Total number of index cache lookups, labeled by the tier that answered.",
			},
			[]string{"tier"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestor_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on per-host crawl pacing.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingestor_active_workers",
				Help: "Number of workers currently running a pipeline.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage records one visited page.
func ObservePage(strategy, outcome string, duration time.Duration) {
	Init()
	pagesTotal.WithLabelValues(strategy, outcome).Inc()
	pageDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObservePipelineRun increments the run counter for the final status.
func ObservePipelineRun(status string) {
	Init()
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

// ObserveStrategy counts a strategy decision.
func ObserveStrategy(strategy string) {
	Init()
	strategyTotal.WithLabelValues(strategy).Inc()
}

// ObserveDetectorFailure counts a failed technology detector.
func ObserveDetectorFailure(detector string) {
	Init()
	detectorFailuresTotal.WithLabelValues(detector).Inc()
}

// ObserveIndexBuild records a finished index build.
func ObserveIndexBuild(outcome string, duration time.Duration) {
	Init()
	indexBuildsTotal.WithLabelValues(outcome).Inc()
	indexBuildDurationSeconds.Observe(duration.Seconds())
}

// ObserveIndexLookup counts which cache tier satisfied a lookup.
func ObserveIndexLookup(tier string) {
	Init()
	indexLookupsTotal.WithLabelValues(tier).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent waiting for a crawl token.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
