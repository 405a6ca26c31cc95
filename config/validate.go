package config

import (
	"fmt"
	"strings"

	"rfqsettle/observability/logging"
)

// Validate checks a loaded configuration for values the simulator cannot run
// with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if cfg.EpochSeconds == 0 {
		return fmt.Errorf("config: EpochSeconds must be positive")
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("config: logging rotation limits must not be negative")
	}
	if (cfg.Telemetry.Traces || cfg.Telemetry.Metrics) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry endpoint required when exporters are enabled")
	}
	if _, err := cfg.RFQ.Params(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
