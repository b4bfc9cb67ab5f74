package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	webhookBucketStart  = 0.005
	webhookBucketFactor = 2.0
	webhookBucketCount  = 12
)

// WebhookRequests counts webhook deliveries by kind and outcome
// (accepted, duplicate, ignored, invalid, unauthorized, forbidden, error, rate_limited).
var WebhookRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeline",
		Name:      "webhook_requests_total",
		Help:      "Provider webhook deliveries by event kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

var WebhookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradeline",
		Name:      "webhook_duration_seconds",
		Help:      "Time taken to handle a provider webhook.",
		Buckets: prometheus.ExponentialBuckets(
			webhookBucketStart,
			webhookBucketFactor,
			webhookBucketCount,
		),
	},
	[]string{"kind"},
)

// DownstreamFailures counts best-effort steps that failed after an event was accepted.
var DownstreamFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeline",
		Name:      "downstream_failures_total",
		Help:      "Timeline, job enqueue and analytics failures that did not change the webhook response.",
	},
	[]string{"step"},
)

var JobsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeline",
		Name:      "jobs_processed_total",
		Help:      "Processing jobs run by the worker, by operation and result.",
	},
	[]string{"operation", "result"},
)

var BreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradeline",
		Name:      "circuit_breaker_open",
		Help:      "1 when the named circuit breaker is open, 0.5 half-open, 0 closed.",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(WebhookRequests)
	prometheus.MustRegister(WebhookDuration)
	prometheus.MustRegister(DownstreamFailures)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(BreakerState)
}
