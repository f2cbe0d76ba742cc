// Package metrics exposes the Prometheus surface for the Aid fallback service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type AidMetrics struct {
	Version *prometheus.CounterVec

	DispatchRequestCount       *prometheus.CounterVec
	DispatchRequestDurationSec *prometheus.HistogramVec

	JobsClaimed   prometheus.Counter
	JobsCompleted prometheus.Counter

	TimeoutReleasedCount prometheus.Counter
	HealerRepairedCount  *prometheus.CounterVec

	WebhookDeliveryFailures prometheus.Counter
	WebhookDeliveryCount    *prometheus.CounterVec
}

var Metrics = NewMetrics()

func NewMetrics() *AidMetrics {
	return &AidMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aid_version",
			Help: "Current version of the running Aid process. Incremented once on startup.",
		}, []string{"version"}),

		DispatchRequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aid_dispatch_request_count",
			Help: "Count of Aid Dispatch Core requests by operation and outcome.",
		}, []string{"operation", "code"}),

		DispatchRequestDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "aid_dispatch_request_duration_sec",
			Help: "Duration of Aid Dispatch Core operations.",
		}, []string{"operation"}),

		JobsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aid_jobs_claimed_total",
			Help: "Count of jobs successfully claimed through the Aid fallback path.",
		}),

		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aid_jobs_completed_total",
			Help: "Count of jobs completed through the Aid fallback path.",
		}),

		TimeoutReleasedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aid_timeout_released_total",
			Help: "Count of job claims released by the Timeout Monitor.",
		}),

		HealerRepairedCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aid_healer_repaired_total",
			Help: "Count of repairs performed by the Video Healer, by phase.",
		}, []string{"phase"}),

		WebhookDeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aid_webhook_delivery_failures_total",
			Help: "Count of failed webhook notification deliveries.",
		}),

		WebhookDeliveryCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aid_webhook_delivery_count",
			Help: "Count of notifications raised by kind, including those not delivered because no webhook URL is set.",
		}, []string{"kind"}),
	}
}
