// Package telemetry exposes Prometheus collectors for the directory service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navhub_pipeline_runs_total",
			Help: "Total pipeline invocations, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	pipelineDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navhub_pipeline_duration_seconds",
			Help:    "Histogram of pipeline invocation latencies.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	submissionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navhub_submissions_created_total",
			Help: "Total submissions accepted through the public intake.",
		},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navhub_webhook_events_total",
			Help: "Total payment webhook deliveries, labeled by result.",
		},
		[]string{"result"},
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
)

// Pipeline run outcomes used as metric labels.
const (
	OutcomeSuccess      = "success"
	OutcomeNoWork       = "no_work"
	OutcomeNoCategories = "no_categories"
	OutcomeCrawlFailed  = "crawl_failed"
	OutcomeWriteFailed  = "write_failed"
	OutcomeError        = "error"
)

// ObservePipelineRun records one pipeline invocation.
func ObservePipelineRun(outcome string, duration time.Duration) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineDurationSeconds.Observe(duration.Seconds())
}

// ObserveSubmissionCreated records one accepted public submission.
func ObserveSubmissionCreated() {
	submissionsCreatedTotal.Inc()
}

// ObserveWebhookEvent records one webhook delivery result.
func ObserveWebhookEvent(result string) {
	webhookEventsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records request counters and latency for one request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
