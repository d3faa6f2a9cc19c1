package signer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains signer metrics.
type Metrics struct {
	signaturesTotal  prometheus.Counter
	validationsTotal *prometheus.CounterVec
}

// NewMetrics creates new signer metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new signer metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "edgeguard"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		signaturesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signer",
				Name:      "signatures_total",
				Help:      "Total number of requests signed",
			},
		),
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signer",
				Name:      "validations_total",
				Help:      "Total number of signature validations by result",
			},
			[]string{"result"},
		),
	}

	// Ignore duplicate registration errors, descriptors are identical.
	_ = registerer.Register(m.signaturesTotal)
	_ = registerer.Register(m.validationsTotal)

	m.Init()

	return m
}

// Init pre-populates validation result labels with zero values so the Vec
// metric appears in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m.validationsTotal == nil {
		return
	}

	results := []string{
		"valid",
		"missing_header",
		"unsupported_version",
		"replay_window_exceeded",
		"content_hash_mismatch",
		"signature_mismatch",
		"invalid",
	}
	for _, r := range results {
		m.validationsTotal.WithLabelValues(r)
	}
}

// RecordSign records a signing operation.
func (m *Metrics) RecordSign() {
	if m.signaturesTotal == nil {
		return
	}
	m.signaturesTotal.Inc()
}

// RecordValidation records a validation outcome.
func (m *Metrics) RecordValidation(result string) {
	if m.validationsTotal == nil {
		return
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}

// failureLabel maps a validation error to a bounded metric label.
func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeader):
		return "missing_header"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrReplayWindowExceeded):
		return "replay_window_exceeded"
	case errors.Is(err, ErrContentHashMismatch):
		return "content_hash_mismatch"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	default:
		return "invalid"
	}
}
