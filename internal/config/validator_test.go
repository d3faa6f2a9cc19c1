package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "negative replay window",
			mutate: func(cfg *Config) {
				cfg.Signer.ReplayWindow = Duration(-time.Second)
			},
			wantErr: "replayWindow",
		},
		{
			name: "invalid provider quota",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Providers = map[string]ScopeLimitConfig{
					"openai": {MaxRequests: 0, Window: Duration(time.Minute)},
				}
			},
			wantErr: "rateLimit",
		},
		{
			name: "malformed pin",
			mutate: func(cfg *Config) {
				cfg.Pinning.Pins = map[string][]string{
					"api.openai.com": {"md5/AAAA"},
				}
			},
			wantErr: "pinning",
		},
		{
			name: "admin port out of range",
			mutate: func(cfg *Config) {
				cfg.Admin.Port = 70000
			},
			wantErr: "admin.port",
		},
		{
			name: "disabled admin skips port check",
			mutate: func(cfg *Config) {
				cfg.Admin.Enabled = false
				cfg.Admin.Port = 70000
			},
		},
		{
			name: "invalid audit format",
			mutate: func(cfg *Config) {
				cfg.Audit.Format = "xml"
			},
			wantErr: "audit",
		},
		{
			name: "sampling rate above one",
			mutate: func(cfg *Config) {
				cfg.Observability.Tracing.SamplingRate = 1.5
			},
			wantErr: "samplingRate",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateConfig(nil))
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)

	var parsed Duration
	require.NoError(t, parsed.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "1m30s"
		return nil
	}))
	assert.Equal(t, d, parsed)
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"45s"`)))
	assert.Equal(t, 45*time.Second, d.Duration())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"45s"`, string(out))

	require.NoError(t, d.UnmarshalJSON([]byte("null")))
	assert.Zero(t, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"not-a-duration"`)))
}
