// Package metrics exposes the booking service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels recorded on transition attempts.
const (
	ResultCommitted       = "committed"
	ResultGuardRejected   = "guard_rejected"
	ResultInvalidEdge     = "invalid_edge"
	ResultTerminal        = "terminal"
	ResultVersionConflict = "version_conflict"
	ResultRateLimited     = "rate_limited"
	ResultError           = "error"
)

// Metrics holds the booking service counters. A nil *Metrics is a no-op so
// callers never need to guard instrumentation sites.
type Metrics struct {
	transitionAttempts *prometheus.CounterVec
	guardViolations    *prometheus.CounterVec
	paymentsRecorded   *prometheus.CounterVec
	sessionsCreated    prometheus.Counter
}

// New registers the booking counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "transition_attempts_total",
			Help:      "Lifecycle transition attempts by source, target and result.",
		}, []string{"from", "to", "result"}),
		guardViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "guard_violations_total",
			Help:      "Guard violations reported on rejected transitions, by code.",
		}, []string{"code"}),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "payments_recorded_total",
			Help:      "Ledger entries appended, by payment kind.",
		}, []string{"kind"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "sessions_created_total",
			Help:      "Sessions opened in REQUEST status.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitionAttempts, m.guardViolations, m.paymentsRecorded, m.sessionsCreated)
	}
	return m
}

// ObserveTransition records one transition attempt outcome.
func (m *Metrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitionAttempts.WithLabelValues(from, to, result).Inc()
}

// ObserveGuardViolation records one reported guard violation code.
func (m *Metrics) ObserveGuardViolation(code string) {
	if m == nil {
		return
	}
	m.guardViolations.WithLabelValues(code).Inc()
}

// ObservePayment records one appended ledger entry.
func (m *Metrics) ObservePayment(kind string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(kind).Inc()
}

// ObserveSessionCreated records one opened session.
func (m *Metrics) ObserveSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}
