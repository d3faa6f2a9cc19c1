package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgeguard/edgeguard/internal/audit"
	"github.com/edgeguard/edgeguard/internal/observability"
)

// ScopeLimit is a (maxRequests, window) quota pair. The per-token refill
// interval is window / maxRequests.
type ScopeLimit struct {
	// MaxRequests is the maximum number of requests in the window.
	MaxRequests int `yaml:"maxRequests" json:"maxRequests"`

	// Window is the time window for the quota.
	Window time.Duration `yaml:"window" json:"window"`
}

// Config holds the quota configuration for all admission scopes.
type Config struct {
	// Global is the shared ceiling across all providers combined.
	Global ScopeLimit `yaml:"global" json:"global"`

	// Providers holds per-provider ceilings by provider key.
	Providers map[string]ScopeLimit `yaml:"providers,omitempty" json:"providers,omitempty"`

	// ProviderDefault is the fallback ceiling for unnamed providers.
	ProviderDefault ScopeLimit `yaml:"providerDefault" json:"providerDefault"`

	// PerUser is the fixed ceiling applied to each user key.
	PerUser ScopeLimit `yaml:"perUser" json:"perUser"`

	// HistorySize caps the decision history ring.
	HistorySize int `yaml:"historySize,omitempty" json:"historySize,omitempty"`
}

// DefaultConfig returns the default quotas. The global ceiling is stricter
// than the sum of the per-provider ceilings.
func DefaultConfig() *Config {
	return &Config{
		Global: ScopeLimit{MaxRequests: 120, Window: time.Minute},
		Providers: map[string]ScopeLimit{
			"openai":    {MaxRequests: 60, Window: time.Minute},
			"anthropic": {MaxRequests: 50, Window: time.Minute},
			"gemini":    {MaxRequests: 60, Window: time.Minute},
		},
		ProviderDefault: ScopeLimit{MaxRequests: 30, Window: time.Minute},
		PerUser:         ScopeLimit{MaxRequests: 20, Window: time.Minute},
		HistorySize:     DefaultHistorySize,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	limits := map[string]ScopeLimit{
		"global":          c.Global,
		"providerDefault": c.ProviderDefault,
		"perUser":         c.PerUser,
	}
	for name, limit := range c.Providers {
		limits["providers."+name] = limit
	}

	for name, limit := range limits {
		if limit.MaxRequests < 1 {
			return fmt.Errorf("rate limit %s: maxRequests must be positive", name)
		}
		if limit.Window <= 0 {
			return fmt.Errorf("rate limit %s: window must be positive", name)
		}
	}

	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed indicates whether the call was admitted.
	Allowed bool

	// DeniedScope is the level that denied the call, empty when allowed.
	DeniedScope Scope

	// Err is the typed denial, nil when allowed.
	Err error

	// RetryAfter estimates how long until a token regenerates at the
	// denying scope.
	RetryAfter time.Duration

	// GlobalRemaining is the global tokens left after the decision.
	GlobalRemaining int
}

// Limiter is the hierarchical admission controller. Buckets are created
// lazily per scope key; creation is idempotent under concurrent first
// access. Safe for concurrent use.
type Limiter struct {
	mu        sync.RWMutex
	cfg       *Config
	global    *bucket
	providers sync.Map // provider key -> *bucket
	users     sync.Map // user key -> *bucket

	history *history
	logger  observability.Logger
	metrics *Metrics
	audit   audit.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option is a functional option for configuring the limiter.
type Option func(*Limiter)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = metrics
	}
}

// WithAuditLogger sets the audit sink for admission decisions.
func WithAuditLogger(auditLogger audit.Logger) Option {
	return func(l *Limiter) {
		l.audit = auditLogger
	}
}

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a new Limiter. A nil config uses DefaultConfig.
func New(cfg *Config, opts ...Option) (*Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		cfg:    cfg,
		logger: observability.NopLogger(),
		now:    time.Now,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.global = newBucket(cfg.Global.MaxRequests, cfg.Global.Window, l.now())
	l.history = newHistory(cfg.HistorySize)

	return l, nil
}

// Admit gates one outbound call for the given provider and optional user
// key. With wait true, a denial triggers a single sleep until a token is
// expected to regenerate at the denying scope, followed by one retry. The
// sleep holds no bucket lock and honors context cancellation.
func (l *Limiter) Admit(ctx context.Context, provider, user string, wait bool) bool {
	decision := l.Decide(provider, user)
	if decision.Allowed || !wait {
		return decision.Allowed
	}

	delay := decision.RetryAfter
	if delay <= 0 {
		delay = time.Millisecond
	}
	if err := l.sleep(ctx, delay); err != nil {
		return false
	}

	return l.Decide(provider, user).Allowed
}

// Decide performs one admission check without waiting. Levels are checked
// in strict order: global, provider, then user when a user key is given.
// A denial at any level refunds every token consumed at the levels above
// it before the denial is returned.
func (l *Limiter) Decide(provider, user string) *Decision {
	now := l.now()

	global := l.globalBucket()
	ok, globalRemaining := global.tryConsume(now)
	if !ok {
		return l.deny(provider, user, ScopeGlobal, "", global.nextToken(now), 0)
	}

	providerBucket := l.providerBucket(provider)
	ok, _ = providerBucket.tryConsume(now)
	if !ok {
		// A provider-level rejection must not leak the global token.
		global.refund()
		globalRemaining, _ = global.snapshot(now)
		return l.deny(provider, user, ScopeProvider, provider, providerBucket.nextToken(now), globalRemaining)
	}

	if user != "" {
		userBucket := l.userBucket(user)
		ok, _ = userBucket.tryConsume(now)
		if !ok {
			global.refund()
			providerBucket.refund()
			globalRemaining, _ = global.snapshot(now)
			return l.deny(provider, user, ScopeUser, user, userBucket.nextToken(now), globalRemaining)
		}
	}

	l.record(Record{
		Timestamp:       now,
		Provider:        provider,
		User:            user,
		Allowed:         true,
		TokensRemaining: globalRemaining,
	})

	if l.metrics != nil {
		l.metrics.RecordDecision("allowed", "")
	}
	if l.audit != nil {
		l.audit.LogAdmission(provider, user, true, "", globalRemaining)
	}

	return &Decision{Allowed: true, GlobalRemaining: globalRemaining}
}

// deny builds a denial decision and records it.
func (l *Limiter) deny(provider, user string, scope Scope, key string, retryAfter time.Duration, globalRemaining int) *Decision {
	l.record(Record{
		Timestamp:       l.now(),
		Provider:        provider,
		User:            user,
		Allowed:         false,
		DeniedScope:     scope,
		TokensRemaining: globalRemaining,
	})

	if l.metrics != nil {
		l.metrics.RecordDecision("denied", scope)
	}
	if l.audit != nil {
		l.audit.LogAdmission(provider, user, false, string(scope), globalRemaining)
	}

	l.logger.Debug("admission denied",
		observability.String("provider", provider),
		observability.String("scope", string(scope)),
		observability.Duration("retry_after", retryAfter),
	)

	return &Decision{
		Allowed:     false,
		DeniedScope: scope,
		Err:         &LimitExceededError{Scope: scope, Key: key},
		RetryAfter:  retryAfter,
	}
}

// ScopeStatus reports remaining and maximum tokens for one scope.
type ScopeStatus struct {
	// Remaining is the projected tokens available now.
	Remaining int `json:"remaining"`

	// MaxTokens is the bucket capacity.
	MaxTokens int `json:"maxTokens"`
}

// Status is a point-in-time snapshot for UI and telemetry consumption.
type Status struct {
	// Global is the global scope status.
	Global ScopeStatus `json:"global"`

	// Provider is the requested provider's status, if one was requested.
	Provider *ScopeStatus `json:"provider,omitempty"`

	// User is the requested user's status, if one was requested.
	User *ScopeStatus `json:"user,omitempty"`

	// NextGlobalRefillMs estimates milliseconds until the next global
	// token regenerates.
	NextGlobalRefillMs int64 `json:"nextGlobalRefillMs"`
}

// Status reports remaining/max tokens at each requested scope without
// mutating any bucket.
func (l *Limiter) Status(provider, user string) *Status {
	now := l.now()

	global := l.globalBucket()
	remaining, maxTokens := global.snapshot(now)

	status := &Status{
		Global:             ScopeStatus{Remaining: remaining, MaxTokens: maxTokens},
		NextGlobalRefillMs: global.nextToken(now).Milliseconds(),
	}

	if provider != "" {
		r, m := l.providerBucket(provider).snapshot(now)
		status.Provider = &ScopeStatus{Remaining: r, MaxTokens: m}
	}

	if user != "" {
		r, m := l.userBucket(user).snapshot(now)
		status.User = &ScopeStatus{Remaining: r, MaxTokens: m}
	}

	return status
}

// History returns the recorded admission decisions, oldest first.
func (l *Limiter) History() []Record {
	return l.history.all()
}

// Reset clears the given provider or user bucket, forcing lazy recreation
// with current defaults on next use. With both keys empty, every provider
// and user bucket is cleared and the global bucket is restored to full.
func (l *Limiter) Reset(provider, user string) {
	if provider == "" && user == "" {
		l.providers.Range(func(key, _ interface{}) bool {
			l.providers.Delete(key)
			return true
		})
		l.users.Range(func(key, _ interface{}) bool {
			l.users.Delete(key)
			return true
		})

		l.mu.Lock()
		l.global = newBucket(l.cfg.Global.MaxRequests, l.cfg.Global.Window, l.now())
		l.mu.Unlock()

		l.logger.Info("rate limiter reset")
		return
	}

	if provider != "" {
		l.providers.Delete(provider)
		l.logger.Info("provider bucket reset", observability.String("provider", provider))
	}
	if user != "" {
		l.users.Delete(user)
		l.logger.Info("user bucket reset", observability.String("user", user))
	}
}

// UpdateProviderLimit atomically replaces a provider bucket definition.
// The replacement bucket starts at its new maximum.
func (l *Limiter) UpdateProviderLimit(provider string, maxRequests int, window time.Duration) error {
	if provider == "" {
		return fmt.Errorf("provider must not be empty")
	}
	if maxRequests < 1 {
		return fmt.Errorf("maxRequests must be positive")
	}
	if window <= 0 {
		return fmt.Errorf("window must be positive")
	}

	l.mu.Lock()
	if l.cfg.Providers == nil {
		l.cfg.Providers = make(map[string]ScopeLimit)
	}
	l.cfg.Providers[provider] = ScopeLimit{MaxRequests: maxRequests, Window: window}
	l.mu.Unlock()

	l.providers.Store(provider, newBucket(maxRequests, window, l.now()))

	l.logger.Info("provider limit updated",
		observability.String("provider", provider),
		observability.Int("max_requests", maxRequests),
		observability.Duration("window", window),
	)

	if l.audit != nil {
		l.audit.LogSecurity(audit.ActionLimitUpdate, audit.OutcomeSuccess, map[string]interface{}{
			"provider":    provider,
			"maxRequests": maxRequests,
			"windowMs":    window.Milliseconds(),
		})
	}

	return nil
}

// globalBucket returns the global bucket.
func (l *Limiter) globalBucket() *bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.global
}

// providerBucket returns the bucket for a provider key, creating it with
// provider-specific defaults on first reference. Creation is an atomic
// insert-if-absent: exactly one bucket per key wins under concurrent
// first access.
func (l *Limiter) providerBucket(provider string) *bucket {
	if b, ok := l.providers.Load(provider); ok {
		return b.(*bucket)
	}

	limit := l.providerLimit(provider)
	b, _ := l.providers.LoadOrStore(provider, newBucket(limit.MaxRequests, limit.Window, l.now()))
	return b.(*bucket)
}

// userBucket returns the bucket for a user key, creating it with the fixed
// per-user default on first reference.
func (l *Limiter) userBucket(user string) *bucket {
	if b, ok := l.users.Load(user); ok {
		return b.(*bucket)
	}

	l.mu.RLock()
	limit := l.cfg.PerUser
	l.mu.RUnlock()

	b, _ := l.users.LoadOrStore(user, newBucket(limit.MaxRequests, limit.Window, l.now()))
	return b.(*bucket)
}

// providerLimit resolves the quota for a provider key.
func (l *Limiter) providerLimit(provider string) ScopeLimit {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit, ok := l.cfg.Providers[provider]; ok {
		return limit
	}
	return l.cfg.ProviderDefault
}

// record appends a decision to the history ring.
func (l *Limiter) record(r Record) {
	l.history.add(r)
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
