// Package metrics provides Prometheus metrics for the PAM core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	DecisionsTotal    *prometheus.CounterVec
	ChecksTotal       *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	RevocationsTotal  *prometheus.CounterVec
	ActivitiesTotal   *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	AuditDroppedTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pam_access_requests_total",
				Help: "Total access requests by resulting status.",
			},
			[]string{"status"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pam_approval_decisions_total",
				Help: "Total approval decisions by outcome.",
			},
			[]string{"decision"},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pam_permission_checks_total",
				Help: "Total permission checks by outcome.",
			},
			[]string{"outcome"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pam_active_sessions",
				Help: "Number of live privileged sessions.",
			},
		),
		RevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pam_session_revocations_total",
				Help: "Total session revocations by cause.",
			},
			[]string{"cause"},
		),
		ActivitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pam_activities_total",
				Help: "Total recorded privileged activities by blocked status.",
			},
			[]string{"blocked"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pam_sweep_duration_seconds",
				Help:    "Duration of session sweep passes.",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pam_audit_events_dropped_total",
				Help: "Audit events dropped due to a full queue.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.DecisionsTotal)
	reg.MustRegister(m.ChecksTotal)
	reg.MustRegister(m.ActiveSessions)
	reg.MustRegister(m.RevocationsTotal)
	reg.MustRegister(m.ActivitiesTotal)
	reg.MustRegister(m.SweepDuration)
	reg.MustRegister(m.AuditDroppedTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the access request counter.
func (m *Metrics) RecordRequest(status string) {
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordDecision increments the approval decision counter.
func (m *Metrics) RecordDecision(decision string) {
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordCheck increments the permission check counter.
func (m *Metrics) RecordCheck(allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordRevocation increments the revocation counter.
func (m *Metrics) RecordRevocation(cause string) {
	m.RevocationsTotal.WithLabelValues(cause).Inc()
}

// RecordActivity increments the activity counter.
func (m *Metrics) RecordActivity(blocked bool) {
	label := "false"
	if blocked {
		label = "true"
	}
	m.ActivitiesTotal.WithLabelValues(label).Inc()
}

// ObserveSweep records the duration of one sweep pass.
func (m *Metrics) ObserveSweep(seconds float64) {
	m.SweepDuration.Observe(seconds)
}
