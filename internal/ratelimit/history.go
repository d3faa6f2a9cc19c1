package ratelimit

import (
	"sync"
	"time"
)

// DefaultHistorySize is the default capacity of the decision history ring.
const DefaultHistorySize = 1000

// Record is an immutable audit entry for one admission decision. The ring
// is purely diagnostic and plays no part in the admission decision itself.
type Record struct {
	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// Provider is the provider key of the call.
	Provider string `json:"provider"`

	// User is the user key of the call, if any.
	User string `json:"user,omitempty"`

	// Allowed indicates whether the call was admitted.
	Allowed bool `json:"allowed"`

	// DeniedScope is the scope that denied the call, empty when allowed.
	DeniedScope Scope `json:"deniedScope,omitempty"`

	// TokensRemaining is the global tokens remaining at decision time.
	TokensRemaining int `json:"tokensRemaining"`
}

// history is a bounded ring of admission records, trimmed from the oldest
// end once the cap is exceeded.
type history struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
	cap     int
}

// newHistory creates a history ring with the given capacity.
func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &history{
		records: make([]Record, capacity),
		cap:     capacity,
	}
}

// add appends a record, evicting the oldest past the cap.
func (h *history) add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = r
	h.next = (h.next + 1) % h.cap
	if h.next == 0 {
		h.full = true
	}
}

// all returns the records oldest-first.
func (h *history) all() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]Record, h.next)
		copy(out, h.records[:h.next])
		return out
	}

	out := make([]Record, 0, h.cap)
	out = append(out, h.records[h.next:]...)
	out = append(out, h.records[:h.next]...)
	return out
}
