// Package metrics provides Prometheus metrics for the session gate and the
// calculator API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	StateTransitions   *prometheus.CounterVec
	AdmissionTotal     *prometheus.CounterVec
	CalculatorRequests *prometheus.CounterVec
}

// New creates a metrics collector with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_refresh_total",
				Help: "Access token refresh attempts",
			},
			[]string{"trigger", "outcome"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "session_refresh_duration_seconds",
				Help:    "Latency of the token refresh call",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
		),
		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_state_transitions_total",
				Help: "Session state changes by target state",
			},
			[]string{"state"},
		),
		AdmissionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_admission_total",
				Help: "Route admission decisions",
			},
			[]string{"decision"},
		),
		CalculatorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calculator_requests_total",
				Help: "Calculator API requests",
			},
			[]string{"calculator", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.StateTransitions,
		m.AdmissionTotal,
		m.CalculatorRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh records one refresh attempt.
func (m *Metrics) RecordRefresh(trigger, outcome string, durationSec float64) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(trigger, outcome).Inc()
	if durationSec > 0 {
		m.RefreshDuration.Observe(durationSec)
	}
}

// RecordTransition records a move into state.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(state).Inc()
}

// RecordAdmission records one route admission decision.
func (m *Metrics) RecordAdmission(decision string) {
	if m == nil {
		return
	}
	m.AdmissionTotal.WithLabelValues(decision).Inc()
}

// RecordCalculator records a calculator request; outcome is "ok" or "invalid".
func (m *Metrics) RecordCalculator(calculator, outcome string) {
	if m == nil {
		return
	}
	m.CalculatorRequests.WithLabelValues(calculator, outcome).Inc()
}
