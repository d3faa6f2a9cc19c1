package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"nil config", nil, false},
		{"default config", DefaultConfig(), false},
		{"disabled ignores format", &Config{Enabled: false, Format: "xml"}, false},
		{"text format", &Config{Enabled: true, Format: "text"}, false},
		{"empty format", &Config{Enabled: true}, false},
		{"invalid format", &Config{Enabled: true, Format: "xml"}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger_DisabledReturnsNop(t *testing.T) {
	t.Parallel()

	lg, err := NewLogger(nil)
	require.NoError(t, err)
	assert.NotNil(t, lg)

	lg, err = NewLogger(&Config{Enabled: false})
	require.NoError(t, err)

	// Discards without error.
	lg.LogSecurity(ActionPinMismatch, OutcomeDenied, nil)
	assert.NoError(t, lg.Close())
}

func TestLogEvent_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg, err := NewLogger(DefaultConfig(), WithLoggerWriter(&buf))
	require.NoError(t, err)

	lg.LogEvent(NewEvent(EventTypeSecurity, ActionPinMismatch, OutcomeDenied).
		WithHost("api.openai.com").
		WithDetails(map[string]interface{}{"reason": "spki mismatch"}))

	var event Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, EventTypeSecurity, event.Type)
	assert.Equal(t, ActionPinMismatch, event.Action)
	assert.Equal(t, OutcomeDenied, event.Outcome)
	assert.Equal(t, "api.openai.com", event.Host)
	assert.Equal(t, "spki mismatch", event.Details["reason"])
}

func TestLogEvent_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg, err := NewLogger(&Config{Enabled: true, Format: "text"}, WithLoggerWriter(&buf))
	require.NoError(t, err)

	lg.LogEvent(NewEvent(EventTypeAdmission, ActionRequestAdmitted, OutcomeSuccess).
		WithProvider("anthropic"))

	line := buf.String()
	assert.Contains(t, line, "admission/request_admitted")
	assert.Contains(t, line, "outcome=success")
	assert.Contains(t, line, "provider=anthropic")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogSecurity_MapsActionToType(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg, err := NewLogger(DefaultConfig(), WithLoggerWriter(&buf))
	require.NoError(t, err)

	lg.LogSecurity(ActionLimitUpdate, OutcomeSuccess, map[string]interface{}{"provider": "openai"})

	var event Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, EventTypeConfiguration, event.Type)
}

func TestLogAdmission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		allowed         bool
		user            string
		expectedAction  Action
		expectedOutcome Outcome
	}{
		{"allowed", true, "alice", ActionRequestAdmitted, OutcomeSuccess},
		{"denied", false, "", ActionRateLimitExceeded, OutcomeDenied},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			lg, err := NewLogger(DefaultConfig(), WithLoggerWriter(&buf))
			require.NoError(t, err)

			lg.LogAdmission("openai", tt.user, tt.allowed, "provider", 42)

			var event Event
			require.NoError(t, json.Unmarshal(buf.Bytes(), &event))

			assert.Equal(t, EventTypeAdmission, event.Type)
			assert.Equal(t, tt.expectedAction, event.Action)
			assert.Equal(t, tt.expectedOutcome, event.Outcome)
			assert.Equal(t, "openai", event.Provider)
			assert.Equal(t, float64(42), event.Details["tokens_remaining"])

			if tt.user != "" {
				assert.Equal(t, tt.user, event.Details["user"])
			}
		})
	}
}

func TestLogEvent_OneLinePerEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg, err := NewLogger(DefaultConfig(), WithLoggerWriter(&buf))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		lg.LogSecurity(ActionSignatureInvalid, OutcomeDenied, nil)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)))
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		event := NewEvent(EventTypeSecurity, ActionReplayDetected, OutcomeDenied)
		assert.False(t, seen[event.ID])
		seen[event.ID] = true
	}
}

func TestTypeForAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, EventTypeSecurity, typeForAction(ActionSignatureInvalid))
	assert.Equal(t, EventTypeSecurity, typeForAction(ActionPinMismatch))
	assert.Equal(t, EventTypeAdmission, typeForAction(ActionRateLimitExceeded))
	assert.Equal(t, EventTypeConfiguration, typeForAction(ActionConfigReload))
}
