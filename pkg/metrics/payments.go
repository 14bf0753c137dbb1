package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment intake and webhook processing metadata.
type PaymentMetrics struct {
	recorded *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payments recorded, labelled by method.",
	}, []string{"method"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Processor webhook deliveries, labelled by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_processing_duration_seconds",
		Help:    "Duration of payment intake operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(recorded, webhooks, duration)
	return &PaymentMetrics{
		recorded: recorded,
		webhooks: webhooks,
		duration: duration,
	}
}

// IncRecorded increments the recorded counter for the payment method.
func (p *PaymentMetrics) IncRecorded(method string) {
	if p == nil || p.recorded == nil {
		return
	}
	p.recorded.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncWebhook increments the webhook counter for the given outcome.
func (p *PaymentMetrics) IncWebhook(outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long the named operation took.
func (p *PaymentMetrics) ObserveDuration(operation string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
