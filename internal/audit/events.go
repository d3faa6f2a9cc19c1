package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

// Event types.
const (
	EventTypeSecurity      EventType = "security"
	EventTypeAdmission     EventType = "admission"
	EventTypeConfiguration EventType = "configuration"
)

// Action represents the action being audited.
type Action string

// Common actions.
const (
	// Security actions
	ActionSignatureInvalid   Action = "signature_invalid"
	ActionReplayDetected     Action = "replay_detected"
	ActionPinMismatch        Action = "pin_mismatch"
	ActionUnpinnedHostAccess Action = "unpinned_host_access"

	// Admission actions
	ActionRateLimitExceeded Action = "rate_limit_exceeded"
	ActionRequestAdmitted   Action = "request_admitted"

	// Configuration actions
	ActionPinRotation  Action = "pin_rotation"
	ActionLimitUpdate  Action = "limit_update"
	ActionConfigReload Action = "config_reload"
)

// Outcome represents the outcome of an audited action.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
	OutcomeWarning Outcome = "warning"
)

// Event represents an audit event.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the type of event.
	Type EventType `json:"type"`

	// Action is the action being audited.
	Action Action `json:"action"`

	// Outcome is the outcome of the action.
	Outcome Outcome `json:"outcome"`

	// Provider is the AI provider involved, if any.
	Provider string `json:"provider,omitempty"`

	// Host is the remote host involved, if any.
	Host string `json:"host,omitempty"`

	// Scope is the admission scope involved, if any (global, provider, user).
	Scope string `json:"scope,omitempty"`

	// Details contains additional event metadata.
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewEvent creates a new audit event with a generated ID and timestamp.
func NewEvent(eventType EventType, action Action, outcome Outcome) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Action:    action,
		Outcome:   outcome,
	}
}

// WithProvider sets the provider on the event.
func (e *Event) WithProvider(provider string) *Event {
	e.Provider = provider
	return e
}

// WithHost sets the host on the event.
func (e *Event) WithHost(host string) *Event {
	e.Host = host
	return e
}

// WithScope sets the admission scope on the event.
func (e *Event) WithScope(scope string) *Event {
	e.Scope = scope
	return e
}

// WithDetails sets additional metadata on the event.
func (e *Event) WithDetails(details map[string]interface{}) *Event {
	e.Details = details
	return e
}

// typeForAction maps an action to its event type.
func typeForAction(action Action) EventType {
	switch action {
	case ActionRateLimitExceeded, ActionRequestAdmitted:
		return EventTypeAdmission
	case ActionPinRotation, ActionLimitUpdate, ActionConfigReload:
		return EventTypeConfiguration
	default:
		return EventTypeSecurity
	}
}
