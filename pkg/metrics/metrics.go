// Package metrics exports Prometheus collectors for capture sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-pano/pkg/protocol"
	"github.com/teslashibe/go-pano/pkg/session"
)

const namespace = "pano"

// Metrics holds the collectors on a private registry, so several instances
// can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive *prometheus.GaugeVec
	sessionsTotal  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	framesCaptured prometheus.Counter
	framesDropped  prometheus.Counter
	messagesSent   *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sessionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of sessions currently running",
			},
			[]string{"mode"},
		),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of finished sessions",
			},
			[]string{"mode", "outcome"}, // outcome: success, failure, canceled
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each session state",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"stage"},
		),
		framesCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_captured_total",
				Help:      "Frames successfully grabbed from the capture source",
			},
		),
		framesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Requested frames that were not delivered",
			},
		),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Protocol messages written to consumers",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.stageDuration,
		m.framesCaptured,
		m.framesDropped,
		m.messagesSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe implements session.Observer.
func (m *Metrics) Observe(ev session.Event) {
	mode := string(ev.Mode)

	if ev.From == session.Accepted && ev.State != session.Accepted {
		m.sessionsActive.WithLabelValues(mode).Inc()
	} else if ev.From != session.Accepted {
		m.stageDuration.WithLabelValues(ev.From.String()).Observe(ev.Elapsed.Seconds())
	}

	if ev.State != session.Closed {
		return
	}

	m.sessionsActive.WithLabelValues(mode).Dec()
	m.sessionsTotal.WithLabelValues(mode, string(ev.Outcome)).Inc()
	m.framesCaptured.Add(float64(ev.Frames))
	if dropped := ev.Requested - ev.Frames; dropped > 0 {
		m.framesDropped.Add(float64(dropped))
	}
}

// MessageSent counts one message written to a consumer.
func (m *Metrics) MessageSent(t protocol.MessageType) {
	m.messagesSent.WithLabelValues(string(t)).Inc()
}
