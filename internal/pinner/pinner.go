package pinner

import (
	"crypto/x509"
	"strings"
	"sync"

	"github.com/edgeguard/edgeguard/internal/audit"
	"github.com/edgeguard/edgeguard/internal/observability"
)

// Config holds the process-wide pin policy.
type Config struct {
	// Enabled globally enables pin validation. When disabled, every chain
	// passes.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// StrictMode rejects hosts with no configured pins. Permissive mode
	// allows them with a logged warning.
	StrictMode bool `yaml:"strictMode" json:"strictMode"`

	// Pins maps host suffixes to their expected SPKI pin sets
	// ("sha256/<base64>"). The longest matching suffix wins.
	Pins map[string][]string `yaml:"pins,omitempty" json:"pins,omitempty"`
}

// DefaultConfig returns a permissive, enabled policy with no pins.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		StrictMode: false,
	}
}

// Validate validates the pin policy.
func (c *Config) Validate() error {
	for _, pins := range c.Pins {
		for _, pin := range pins {
			if err := validatePinFormat(pin); err != nil {
				return err
			}
		}
	}
	return nil
}

// Result is the outcome of one chain validation.
type Result struct {
	// Valid indicates whether the chain passed pin validation.
	Valid bool

	// Reason is a diagnostic description of the outcome.
	Reason string

	// Hostname is the host identified from the leaf certificate.
	Hostname string

	// ExpectedPins is the configured pin set for the host, if any.
	ExpectedPins []string

	// ActualPins is the observed pin of every certificate in the chain.
	ActualPins []string

	// Err is the typed failure, nil when Valid.
	Err error
}

// resolvedEntry is a cached pin resolution for an exact hostname.
type resolvedEntry struct {
	pins []string
}

// Pinner validates certificate chains against the pin policy. The
// resolved-host cache is read far more often than written; reads take a
// shared lock so they never block each other.
type Pinner struct {
	mu    sync.RWMutex
	cfg   *Config
	cache map[string]*resolvedEntry

	logger  observability.Logger
	metrics *Metrics
	audit   audit.Logger
}

// Option is a functional option for configuring the pinner.
type Option func(*Pinner)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Pinner) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Pinner) {
		p.metrics = metrics
	}
}

// WithAuditLogger sets the audit sink for pinning decisions.
func WithAuditLogger(auditLogger audit.Logger) Option {
	return func(p *Pinner) {
		p.audit = auditLogger
	}
}

// New creates a new Pinner. A nil config uses DefaultConfig.
func New(cfg *Config, opts ...Option) (*Pinner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pinner{
		cfg:    cfg,
		cache:  make(map[string]*resolvedEntry),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// ValidateChain validates a certificate chain against the pin policy.
// The chain passes when any certificate in it carries a pinned public
// key, so intermediate CA pinning is supported.
func (p *Pinner) ValidateChain(chain []*x509.Certificate) *Result {
	if !p.enabled() {
		p.observe("pass_disabled")
		return &Result{Valid: true, Reason: "pinning disabled"}
	}

	if len(chain) == 0 {
		p.observe("fail_empty_chain")
		return &Result{Valid: false, Reason: ErrEmptyChain.Error(), Err: ErrEmptyChain}
	}

	hostname := hostnameFromLeaf(chain[0])
	expected := p.resolvePins(hostname)

	if len(expected) == 0 {
		if p.strict() {
			err := &NoPinsError{Host: hostname}
			p.observe("fail_no_pins")
			p.auditDenial(audit.ActionUnpinnedHostAccess, hostname, err.Error())
			return &Result{Valid: false, Reason: err.Error(), Hostname: hostname, Err: err}
		}

		// Permissive mode: allowed but flagged.
		p.observe("pass_unpinned")
		p.logger.Warn("connection to unpinned host allowed",
			observability.String("host", hostname),
		)
		if p.audit != nil {
			p.audit.LogEvent(audit.NewEvent(audit.EventTypeSecurity, audit.ActionUnpinnedHostAccess, audit.OutcomeWarning).
				WithHost(hostname))
		}
		return &Result{Valid: true, Reason: "no pins configured, permissive mode", Hostname: hostname}
	}

	actual := chainPins(chain)
	for _, pin := range actual {
		for _, want := range expected {
			if pin == want {
				p.observe("pass")
				return &Result{
					Valid:        true,
					Reason:       "pin matched",
					Hostname:     hostname,
					ExpectedPins: expected,
					ActualPins:   actual,
				}
			}
		}
	}

	err := &PinMismatchError{Host: hostname, Expected: expected, Actual: actual}
	p.observe("fail_mismatch")
	p.auditDenial(audit.ActionPinMismatch, hostname, err.Error())
	p.logger.Warn("certificate pin mismatch",
		observability.String("host", hostname),
		observability.Strings("expected", expected),
		observability.Strings("actual", actual),
	)

	return &Result{
		Valid:        false,
		Reason:       err.Error(),
		Hostname:     hostname,
		ExpectedPins: expected,
		ActualPins:   actual,
		Err:          err,
	}
}

// resolvePins looks up the pin set for an exact hostname, consulting the
// resolution cache before scanning the suffix table.
func (p *Pinner) resolvePins(hostname string) []string {
	p.mu.RLock()
	if entry, ok := p.cache[hostname]; ok {
		pins := entry.pins
		p.mu.RUnlock()
		return pins
	}
	p.mu.RUnlock()

	pins := p.matchSuffix(hostname)
	if pins == nil {
		return nil
	}

	p.mu.Lock()
	p.cache[hostname] = &resolvedEntry{pins: pins}
	p.mu.Unlock()

	return pins
}

// matchSuffix finds the configured entry with the longest suffix matching
// the hostname. A suffix matches when the hostname equals it or ends with
// "." plus the suffix.
func (p *Pinner) matchSuffix(hostname string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var best string
	var bestPins []string
	for suffix, pins := range p.cfg.Pins {
		lower := strings.ToLower(suffix)
		if hostname != lower && !strings.HasSuffix(hostname, "."+lower) {
			continue
		}
		if len(lower) > len(best) {
			best = lower
			bestPins = pins
		}
	}

	return bestPins
}

// UpdatePins replaces the resolved pin set for an exact hostname at
// runtime. It layers above the configured suffix table and does not
// mutate it.
func (p *Pinner) UpdatePins(hostname string, pins []string) error {
	for _, pin := range pins {
		if err := validatePinFormat(pin); err != nil {
			return err
		}
	}

	hostname = strings.ToLower(hostname)

	p.mu.Lock()
	p.cache[hostname] = &resolvedEntry{pins: pins}
	p.mu.Unlock()

	p.logger.Info("pins updated",
		observability.String("host", hostname),
		observability.Int("pins", len(pins)),
	)

	if p.audit != nil {
		p.audit.LogEvent(audit.NewEvent(audit.EventTypeConfiguration, audit.ActionPinRotation, audit.OutcomeSuccess).
			WithHost(hostname).
			WithDetails(map[string]interface{}{"pins": len(pins)}))
	}

	return nil
}

// ClearCache drops every resolved-host cache entry.
func (p *Pinner) ClearCache() {
	p.mu.Lock()
	p.cache = make(map[string]*resolvedEntry)
	p.mu.Unlock()

	p.logger.Info("pin resolution cache cleared")
}

// ApplyConfig replaces the pin policy at runtime and clears the
// resolution cache.
func (p *Pinner) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.cache = make(map[string]*resolvedEntry)
	p.mu.Unlock()

	p.logger.Info("pin policy applied",
		observability.Bool("enabled", cfg.Enabled),
		observability.Bool("strict", cfg.StrictMode),
		observability.Int("hosts", len(cfg.Pins)),
	)

	return nil
}

// enabled reports whether pinning is globally enabled.
func (p *Pinner) enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Enabled
}

// strict reports whether strict mode is active.
func (p *Pinner) strict() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.StrictMode
}

// observe records a validation outcome metric.
func (p *Pinner) observe(result string) {
	if p.metrics != nil {
		p.metrics.RecordValidation(result)
	}
}

// auditDenial surfaces a pinning denial to the audit sink.
func (p *Pinner) auditDenial(action audit.Action, hostname, reason string) {
	if p.audit == nil {
		return
	}
	p.audit.LogEvent(audit.NewEvent(audit.EventTypeSecurity, action, audit.OutcomeDenied).
		WithHost(hostname).
		WithDetails(map[string]interface{}{"reason": reason}))
}
