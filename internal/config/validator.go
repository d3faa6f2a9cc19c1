package config

import (
	"fmt"
)

// ValidateConfig validates the full configuration document.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if w := cfg.Signer.ReplayWindow.Duration(); w < 0 {
		return fmt.Errorf("signer.replayWindow must not be negative")
	}

	if err := cfg.RateLimiterConfig().Validate(); err != nil {
		return fmt.Errorf("rateLimit: %w", err)
	}

	if err := cfg.PinnerConfig().Validate(); err != nil {
		return fmt.Errorf("pinning: %w", err)
	}

	if cfg.Admin.Enabled {
		if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
			return fmt.Errorf("admin.port must be between 0 and 65535")
		}
	}

	if cfg.Audit != nil {
		if err := cfg.Audit.Validate(); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
	}

	if rate := cfg.Observability.Tracing.SamplingRate; rate < 0 || rate > 1 {
		return fmt.Errorf("observability.tracing.samplingRate must be between 0 and 1")
	}

	return nil
}
