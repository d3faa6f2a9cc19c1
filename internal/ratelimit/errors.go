package ratelimit

import (
	"errors"
	"fmt"
)

// Scope identifies a rate limit level.
type Scope string

// Admission scopes.
const (
	// ScopeGlobal is the process-wide bucket across all providers.
	ScopeGlobal Scope = "global"

	// ScopeProvider is the per-provider bucket.
	ScopeProvider Scope = "provider"

	// ScopeUser is the per-user bucket.
	ScopeUser Scope = "user"
)

// ErrRateLimitExceeded indicates an admission denial at some scope.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// LimitExceededError reports which scope denied the admission.
type LimitExceededError struct {
	// Scope is the level at which the denial occurred.
	Scope Scope

	// Key is the scope key (provider name or user ID, empty for global).
	Key string
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("rate limit exceeded at %s scope (%s)", e.Scope, e.Key)
	}
	return fmt.Sprintf("rate limit exceeded at %s scope", e.Scope)
}

// Is checks if the error matches the target.
func (e *LimitExceededError) Is(target error) bool {
	if errors.Is(target, ErrRateLimitExceeded) {
		return true
	}
	_, ok := target.(*LimitExceededError)
	return ok
}
