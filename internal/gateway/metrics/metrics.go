// Package metrics provides Prometheus metrics for the forwarding gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess         = "success"
	OutcomeUpstreamFailure = "upstream_failure"
	OutcomeNetworkError    = "network_error"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	ForwardsTotal        *prometheus.CounterVec   // Forward results by channel and outcome
	ValidationFailures   *prometheus.CounterVec   // Rejected requests by channel and error code
	UpstreamLatency      *prometheus.HistogramVec // Round trip to the webhook by channel
	UploadBytes          *prometheus.HistogramVec // Accepted upload sizes by channel
	PlainTextResponses   *prometheus.CounterVec   // 2xx bodies that were not JSON
	UpstreamStatusByCode *prometheus.CounterVec   // Upstream status codes by channel
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ForwardsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_forwards_total",
			Help: "Total number of forwarded requests by channel and outcome",
		}, []string{"channel", "outcome"}),

		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_validation_failures_total",
			Help: "Total number of rejected inbound requests by channel and error code",
		}, []string{"channel", "code"}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookgate_upstream_latency_seconds",
			Help:    "Latency of calls to the automation webhook",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"channel"}),

		UploadBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookgate_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1 KiB .. 256 MiB
		}, []string{"channel"}),

		PlainTextResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_plain_text_responses_total",
			Help: "Total number of successful upstream answers that were wrapped as plain text",
		}, []string{"channel"}),

		UpstreamStatusByCode: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_upstream_status_total",
			Help: "Upstream HTTP status codes by channel",
		}, []string{"channel", "code"}),
	}
}

func (m *Metrics) RecordForward(channel, outcome string) {
	m.ForwardsTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RecordValidationFailure(channel, code string) {
	m.ValidationFailures.WithLabelValues(channel, code).Inc()
}

func (m *Metrics) ObserveUpstreamLatency(channel string, durationSeconds float64) {
	m.UpstreamLatency.WithLabelValues(channel).Observe(durationSeconds)
}

func (m *Metrics) ObserveUploadBytes(channel string, n int64) {
	m.UploadBytes.WithLabelValues(channel).Observe(float64(n))
}

func (m *Metrics) RecordPlainText(channel string) {
	m.PlainTextResponses.WithLabelValues(channel).Inc()
}

func (m *Metrics) RecordUpstreamStatus(channel, code string) {
	m.UpstreamStatusByCode.WithLabelValues(channel, code).Inc()
}
