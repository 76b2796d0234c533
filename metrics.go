package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sqs_worker"

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	MessagesReceived  prometheus.Counter
	MessagesProcessed *prometheus.CounterVec
	MessagesDeleted   *prometheus.CounterVec
	PollErrors        prometheus.Counter
	PollBackoffs      prometheus.Counter
	PollDuration      prometheus.Histogram
	ProcessDuration   prometheus.Histogram
	Ready             prometheus.Gauge
	QueueMessages     *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Total messages received from SQS.",
		}),

		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_processed_total",
			Help:      "Total messages handed to the handler, by result.",
		}, []string{"result"}),

		MessagesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_deleted_total",
			Help:      "Total delete attempts, by result.",
		}, []string{"result"}),

		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "poll_errors_total",
			Help:      "Total failed ReceiveMessage calls.",
		}),

		PollBackoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "poll_backoffs_total",
			Help:      "Total backoff delays inserted after a failed poll.",
		}),

		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "poll_duration_seconds",
			Help:      "ReceiveMessage call duration in seconds, long poll wait included.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 20, 30},
		}),

		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "process_duration_seconds",
			Help:      "Handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ready",
			Help:      "1 when the worker reports ready, 0 otherwise.",
		}),

		QueueMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_messages",
			Help:      "Approximate number of messages in the queue, by state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.MessagesProcessed,
		m.MessagesDeleted,
		m.PollErrors,
		m.PollBackoffs,
		m.PollDuration,
		m.ProcessDuration,
		m.Ready,
		m.QueueMessages,
	)

	return m
}
