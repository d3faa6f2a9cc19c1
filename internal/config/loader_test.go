package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
signer:
  replayWindow: 2m
rateLimit:
  global:
    maxRequests: 200
    window: 60s
  providers:
    openai:
      maxRequests: 90
      window: 60s
  perUser:
    maxRequests: 10
    window: 30s
  historySize: 500
pinning:
  enabled: true
  strictMode: true
  pins:
    api.openai.com:
      - "sha256/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
admin:
  enabled: true
  address: "127.0.0.1"
  port: 9000
observability:
  logging:
    level: debug
  tracing:
    enabled: true
    samplingRate: 0.5
audit:
  enabled: true
  format: text
`

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Signer.ReplayWindow.Duration())
	require.NotNil(t, cfg.RateLimit.Global)
	assert.Equal(t, 200, cfg.RateLimit.Global.MaxRequests)
	assert.Equal(t, 500, cfg.RateLimit.HistorySize)
	assert.True(t, cfg.Pinning.StrictMode)
	assert.Len(t, cfg.Pinning.Pins["api.openai.com"], 1)
	assert.Equal(t, 9000, cfg.Admin.Port)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, 0.5, cfg.Observability.Tracing.SamplingRate)
	assert.Equal(t, "text", cfg.Audit.Format)

	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_UnsetSectionsKeepDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader("signer:\n  replayWindow: 30s\n"))
	require.NoError(t, err)

	// Only the signer section was set, everything else is the default.
	assert.Equal(t, 30*time.Second, cfg.Signer.ReplayWindow.Duration())
	assert.True(t, cfg.Pinning.Enabled)
	assert.False(t, cfg.Pinning.StrictMode)
	assert.Equal(t, "127.0.0.1", cfg.Admin.Address)
	assert.Equal(t, 8787, cfg.Admin.Port)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "edgeguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Admin.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("signer: [not: a: mapping"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("EDGEGUARD_TEST_PORT", "9999")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"set variable", "port: ${EDGEGUARD_TEST_PORT}", "port: 9999"},
		{"unset with default", "level: ${EDGEGUARD_TEST_UNSET:-warn}", "level: warn"},
		{"set ignores default", "port: ${EDGEGUARD_TEST_PORT:-1}", "port: 9999"},
		{"unset without default", "x: ${EDGEGUARD_TEST_UNSET}", "x: "},
		{"escaped dollar preserved", "secret: $$literal", "secret: $literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, substituteEnvVars(tt.input))
		})
	}
}

func TestRateLimiterConfigConversion(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	rl := cfg.RateLimiterConfig()
	assert.Equal(t, 200, rl.Global.MaxRequests)
	assert.Equal(t, 90, rl.Providers["openai"].MaxRequests)
	assert.Equal(t, 10, rl.PerUser.MaxRequests)
	assert.Equal(t, 30*time.Second, rl.PerUser.Window)
	assert.Equal(t, 500, rl.HistorySize)

	// Unset scopes fall back to limiter defaults.
	assert.Equal(t, 30, rl.ProviderDefault.MaxRequests)
}

func TestRateLimiterConfig_WindowDefaultsToMinute(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader("rateLimit:\n  global:\n    maxRequests: 50\n"))
	require.NoError(t, err)

	rl := cfg.RateLimiterConfig()
	assert.Equal(t, 50, rl.Global.MaxRequests)
	assert.Equal(t, time.Minute, rl.Global.Window)
}

func TestPinnerConfigConversion(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	pc := cfg.PinnerConfig()
	assert.True(t, pc.Enabled)
	assert.True(t, pc.StrictMode)
	assert.Len(t, pc.Pins, 1)
}
