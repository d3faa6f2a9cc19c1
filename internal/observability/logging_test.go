package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"defaults", DefaultLogConfig(), false},
		{"debug console", LogConfig{Level: "debug", Format: "console"}, false},
		{"stderr output", LogConfig{Level: "warn", Output: "stderr"}, false},
		{"empty level defaults to info", LogConfig{}, false},
		{"invalid level", LogConfig{Level: "verbose"}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			logger.Info("test message", String("key", "value"))
			logger.With(Int("n", 1)).Debug("with fields")
		})
	}
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	logger.Info("discarded")
	logger.Error("discarded")
	assert.NoError(t, logger.Sync())
}

func TestCallIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, CallIDFromContext(ctx))

	ctx = ContextWithCallID(ctx, "call-123")
	assert.Equal(t, "call-123", CallIDFromContext(ctx))

	logger := NopLogger().WithContext(ctx)
	assert.NotNil(t, logger)
}

func TestGlobalLogger(t *testing.T) {
	// Not parallel: mutates package-level state.
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger := NopLogger()
	SetGlobalLogger(logger)
	assert.Equal(t, logger, GetGlobalLogger())
}
