package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeguard/edgeguard/internal/observability"
)

// Output formats.
const (
	formatJSON = "json"
	formatText = "text"
)

// Config holds audit logger configuration.
type Config struct {
	// Enabled enables audit logging.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Format is the output format (json, text).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is the output destination (stdout, stderr, or a file path).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Format:  formatJSON,
		Output:  "stdout",
	}
}

// Validate validates the audit configuration.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Format != "" && c.Format != formatJSON && c.Format != formatText {
		return fmt.Errorf("invalid audit format %q (supported: json, text)", c.Format)
	}
	return nil
}

// Logger is the audit logger interface.
type Logger interface {
	// LogEvent logs an audit event.
	LogEvent(event *Event)

	// LogSecurity logs a security event.
	LogSecurity(action Action, outcome Outcome, details map[string]interface{})

	// LogAdmission logs an admission decision.
	LogAdmission(provider, user string, allowed bool, scope string, remaining int)

	// Close closes the logger.
	Close() error
}

// logger implements the Logger interface.
type logger struct {
	config  *Config
	writer  io.Writer
	mu      sync.Mutex
	logger  observability.Logger
	metrics *Metrics
	closer  io.Closer
}

// Metrics contains audit metrics.
type Metrics struct {
	eventsTotal *prometheus.CounterVec
}

// NewMetrics creates new audit metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new audit metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "edgeguard"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events",
			},
			[]string{"type", "action", "outcome"},
		),
	}

	// Ignore duplicate registration errors, descriptors are identical.
	_ = registerer.Register(m.eventsTotal)

	return m
}

// RecordEvent records an audit event metric.
func (m *Metrics) RecordEvent(eventType EventType, action Action, outcome Outcome) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(eventType), string(action), string(outcome)).Inc()
}

// LoggerOption is a functional option for the logger.
type LoggerOption func(*logger)

// WithLoggerLogger sets the observability logger.
func WithLoggerLogger(l observability.Logger) LoggerOption {
	return func(lg *logger) {
		lg.logger = l
	}
}

// WithLoggerMetrics sets the metrics.
func WithLoggerMetrics(metrics *Metrics) LoggerOption {
	return func(lg *logger) {
		lg.metrics = metrics
	}
}

// WithLoggerWriter sets the writer.
func WithLoggerWriter(writer io.Writer) LoggerOption {
	return func(lg *logger) {
		lg.writer = writer
	}
}

// NewLogger creates a new audit logger. A disabled config returns a no-op
// logger.
func NewLogger(config *Config, opts ...LoggerOption) (Logger, error) {
	if config == nil || !config.Enabled {
		return NopLogger(), nil
	}

	lg := &logger{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(lg)
	}

	if lg.writer == nil {
		writer, closer, err := openOutput(config.Output)
		if err != nil {
			return nil, err
		}
		lg.writer = writer
		lg.closer = closer
	}

	return lg, nil
}

// openOutput resolves the configured output destination.
func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit output %s: %w", output, err)
		}
		return f, f, nil
	}
}

// LogEvent implements Logger.
func (l *logger) LogEvent(event *Event) {
	if event == nil {
		return
	}

	l.metrics.RecordEvent(event.Type, event.Action, event.Outcome)

	line, err := l.format(event)
	if err != nil {
		l.logger.Error("failed to encode audit event", observability.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(append(line, '\n')); err != nil {
		l.logger.Error("failed to write audit event", observability.Error(err))
	}
}

// LogSecurity implements Logger.
func (l *logger) LogSecurity(action Action, outcome Outcome, details map[string]interface{}) {
	l.LogEvent(NewEvent(typeForAction(action), action, outcome).WithDetails(details))
}

// LogAdmission implements Logger.
func (l *logger) LogAdmission(provider, user string, allowed bool, scope string, remaining int) {
	action := ActionRequestAdmitted
	outcome := OutcomeSuccess
	if !allowed {
		action = ActionRateLimitExceeded
		outcome = OutcomeDenied
	}

	event := NewEvent(EventTypeAdmission, action, outcome).
		WithProvider(provider).
		WithScope(scope).
		WithDetails(map[string]interface{}{"tokens_remaining": remaining})
	if user != "" {
		event.Details["user"] = user
	}

	l.LogEvent(event)
}

// Close implements Logger.
func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// format encodes an event according to the configured format.
func (l *logger) format(event *Event) ([]byte, error) {
	if l.config.Format == formatText {
		return []byte(fmt.Sprintf("%s %s %s/%s outcome=%s provider=%s host=%s scope=%s",
			event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			event.ID, event.Type, event.Action, event.Outcome,
			event.Provider, event.Host, event.Scope)), nil
	}
	return json.Marshal(event)
}

// nopLogger is a Logger that discards all events.
type nopLogger struct{}

// NopLogger returns a Logger that discards all events.
func NopLogger() Logger {
	return nopLogger{}
}

// LogEvent implements Logger.
func (nopLogger) LogEvent(*Event) {}

// LogSecurity implements Logger.
func (nopLogger) LogSecurity(Action, Outcome, map[string]interface{}) {}

// LogAdmission implements Logger.
func (nopLogger) LogAdmission(string, string, bool, string, int) {}

// Close implements Logger.
func (nopLogger) Close() error { return nil }
