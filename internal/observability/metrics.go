package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry shared by all components.
type Metrics struct {
	registry  *prometheus.Registry
	buildInfo *prometheus.GaugeVec
	startTime prometheus.Gauge
	namespace string
}

// NewMetrics creates a new Metrics instance with its own registry,
// pre-registered with Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "edgeguard"
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
	}

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Process start time in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.buildInfo,
		m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry so component packages can
// register their own metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Namespace returns the metric namespace.
func (m *Metrics) Namespace() string {
	return m.namespace
}

// SetBuildInfo records build information.
func (m *Metrics) SetBuildInfo(version, commit string, startTimeUnix float64) {
	m.buildInfo.WithLabelValues(version, commit).Set(1)
	m.startTime.Set(startTimeUnix)
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
