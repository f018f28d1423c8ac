package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if strings.TrimSpace(cfg.Registry.BundleDir) == "" {
		return errors.New("registry.bundle_dir must be set")
	}
	if cfg.Registry.TTLSeconds < 0 {
		return errors.New("registry.ttl_seconds must not be negative")
	}

	if cfg.Scoring.MaxBatchSize <= 0 {
		return errors.New("scoring.max_batch_size must be positive")
	}
	if cfg.Scoring.MinCoverage < 0 || cfg.Scoring.MinCoverage > 1 {
		return fmt.Errorf("scoring.min_coverage must be within [0, 1], got %v", cfg.Scoring.MinCoverage)
	}
	if cfg.Scoring.Workers <= 0 {
		return errors.New("scoring.workers must be positive")
	}

	if cfg.Calibration.Steepness <= 0 {
		return errors.New("calibration.steepness must be positive")
	}
	if cfg.Calibration.Floor < 0 || cfg.Calibration.Ceil > 1 || cfg.Calibration.Floor >= cfg.Calibration.Ceil {
		return fmt.Errorf("calibration floor/ceil must satisfy 0 <= floor < ceil <= 1, got %v/%v",
			cfg.Calibration.Floor, cfg.Calibration.Ceil)
	}

	if cfg.Store.Breaker.FailureThreshold <= 0 || cfg.Store.Breaker.SuccessThreshold <= 0 {
		return errors.New("store.breaker thresholds must be positive")
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}

	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if t.QueueSize <= 0 {
		return errors.New("telemetry.queue_size must be positive")
	}
	if t.Workers <= 0 {
		return errors.New("telemetry.workers must be positive")
	}
	if t.WebhookURL != "" {
		u, err := url.Parse(t.WebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("telemetry.webhook_url is not a valid url: %q", t.WebhookURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("telemetry.webhook_url must be http or https, got %q", u.Scheme)
		}
	}
	return nil
}
