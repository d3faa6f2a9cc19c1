package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains rate limiter metrics.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
}

// NewMetrics creates new rate limiter metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new rate limiter metrics registered
// with the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "edgeguard"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Total number of admission decisions by outcome and denying scope",
			},
			[]string{"outcome", "scope"},
		),
	}

	// Ignore duplicate registration errors, descriptors are identical.
	_ = registerer.Register(m.decisionsTotal)

	m.Init()

	return m
}

// Init pre-populates label combinations with zero values so the Vec metric
// appears in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m.decisionsTotal == nil {
		return
	}

	m.decisionsTotal.WithLabelValues("allowed", "")
	for _, scope := range []Scope{ScopeGlobal, ScopeProvider, ScopeUser} {
		m.decisionsTotal.WithLabelValues("denied", string(scope))
	}
}

// RecordDecision records an admission decision.
func (m *Metrics) RecordDecision(outcome string, scope Scope) {
	if m.decisionsTotal == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(outcome, string(scope)).Inc()
}
