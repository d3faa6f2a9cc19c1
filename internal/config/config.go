// Package config provides YAML configuration for the trust and admission
// layer: signing protocol settings, hierarchical rate-limit quotas, the
// certificate pin table, and the operational surfaces (admin API, logging,
// metrics, tracing, audit).
package config

import (
	"time"

	"github.com/edgeguard/edgeguard/internal/audit"
	"github.com/edgeguard/edgeguard/internal/pinner"
	"github.com/edgeguard/edgeguard/internal/ratelimit"
)

// Config is the root configuration document.
type Config struct {
	// Signer configures the request signing protocol.
	Signer SignerConfig `yaml:"signer" json:"signer"`

	// RateLimit configures the hierarchical admission quotas.
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`

	// Pinning configures the certificate pin policy.
	Pinning PinningConfig `yaml:"pinning" json:"pinning"`

	// Admin configures the localhost operational API.
	Admin AdminConfig `yaml:"admin" json:"admin"`

	// Observability configures logging, metrics, and tracing.
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Audit configures the security audit sink.
	Audit *audit.Config `yaml:"audit,omitempty" json:"audit,omitempty"`
}

// SignerConfig configures the request signer.
type SignerConfig struct {
	// ReplayWindow is the tolerated clock skew in either direction for
	// signed timestamps. Zero uses the signer default.
	ReplayWindow Duration `yaml:"replayWindow,omitempty" json:"replayWindow,omitempty"`
}

// ScopeLimitConfig is a (maxRequests, window) quota pair.
type ScopeLimitConfig struct {
	// MaxRequests is the maximum number of requests in the window.
	MaxRequests int `yaml:"maxRequests" json:"maxRequests"`

	// Window is the quota window.
	Window Duration `yaml:"window" json:"window"`
}

// RateLimitConfig configures the hierarchical rate limiter.
type RateLimitConfig struct {
	// Global is the shared ceiling across all providers combined.
	Global *ScopeLimitConfig `yaml:"global,omitempty" json:"global,omitempty"`

	// Providers holds per-provider ceilings.
	Providers map[string]ScopeLimitConfig `yaml:"providers,omitempty" json:"providers,omitempty"`

	// ProviderDefault is the fallback ceiling for unnamed providers.
	ProviderDefault *ScopeLimitConfig `yaml:"providerDefault,omitempty" json:"providerDefault,omitempty"`

	// PerUser is the fixed per-user ceiling.
	PerUser *ScopeLimitConfig `yaml:"perUser,omitempty" json:"perUser,omitempty"`

	// HistorySize caps the decision history ring.
	HistorySize int `yaml:"historySize,omitempty" json:"historySize,omitempty"`
}

// PinningConfig configures the certificate pinner.
type PinningConfig struct {
	// Enabled globally enables pin validation.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// StrictMode rejects hosts with no configured pins.
	StrictMode bool `yaml:"strictMode" json:"strictMode"`

	// Pins maps host suffixes to expected SPKI pins.
	Pins map[string][]string `yaml:"pins,omitempty" json:"pins,omitempty"`
}

// AdminConfig configures the operational HTTP API.
type AdminConfig struct {
	// Enabled enables the admin server.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address is the listen address. Defaults to loopback.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Port is the listen port.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes /metrics on the admin server.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// ObservabilityConfig groups logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pinning: PinningConfig{Enabled: true},
		Admin: AdminConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    8787,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{SamplingRate: 1.0},
		},
		Audit: audit.DefaultConfig(),
	}
}

// RateLimiterConfig converts the YAML rate-limit section into the limiter
// configuration, filling unset scopes with limiter defaults.
func (c *Config) RateLimiterConfig() *ratelimit.Config {
	cfg := ratelimit.DefaultConfig()

	if g := c.RateLimit.Global; g != nil {
		cfg.Global = toScopeLimit(*g)
	}
	if d := c.RateLimit.ProviderDefault; d != nil {
		cfg.ProviderDefault = toScopeLimit(*d)
	}
	if u := c.RateLimit.PerUser; u != nil {
		cfg.PerUser = toScopeLimit(*u)
	}
	if len(c.RateLimit.Providers) > 0 {
		cfg.Providers = make(map[string]ratelimit.ScopeLimit, len(c.RateLimit.Providers))
		for name, limit := range c.RateLimit.Providers {
			cfg.Providers[name] = toScopeLimit(limit)
		}
	}
	if c.RateLimit.HistorySize > 0 {
		cfg.HistorySize = c.RateLimit.HistorySize
	}

	return cfg
}

// toScopeLimit converts a YAML quota pair, defaulting the window to one
// minute.
func toScopeLimit(limit ScopeLimitConfig) ratelimit.ScopeLimit {
	window := limit.Window.Duration()
	if window <= 0 {
		window = time.Minute
	}
	return ratelimit.ScopeLimit{MaxRequests: limit.MaxRequests, Window: window}
}

// PinnerConfig converts the YAML pinning section into the pinner
// configuration.
func (c *Config) PinnerConfig() *pinner.Config {
	return &pinner.Config{
		Enabled:    c.Pinning.Enabled,
		StrictMode: c.Pinning.StrictMode,
		Pins:       c.Pinning.Pins,
	}
}
