package pinner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains pin validation metrics.
type Metrics struct {
	validationsTotal *prometheus.CounterVec
}

// NewMetrics creates new pinner metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new pinner metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "edgeguard"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pinner",
				Name:      "validations_total",
				Help:      "Total number of pin validations by result",
			},
			[]string{"result"},
		),
	}

	// Ignore duplicate registration errors, descriptors are identical.
	_ = registerer.Register(m.validationsTotal)

	m.Init()

	return m
}

// Init pre-populates result labels with zero values so the Vec metric
// appears in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m.validationsTotal == nil {
		return
	}

	results := []string{
		"pass",
		"pass_disabled",
		"pass_unpinned",
		"fail_no_pins",
		"fail_mismatch",
		"fail_empty_chain",
	}
	for _, r := range results {
		m.validationsTotal.WithLabelValues(r)
	}
}

// RecordValidation records a pin validation outcome.
func (m *Metrics) RecordValidation(result string) {
	if m.validationsTotal == nil {
		return
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}
