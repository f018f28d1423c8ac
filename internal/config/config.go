package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the lead scoring service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Registry    RegistryConfig    `yaml:"registry"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8085"
}

type StoreConfig struct {
	LeadsFile string        `yaml:"leads_file"` // JSON fixture, empty means empty in-memory store
	Breaker   BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold"`
	SuccessThreshold   int `yaml:"success_threshold"`
	OpenTimeoutSeconds int `yaml:"open_timeout_seconds"`
}

type RegistryConfig struct {
	BundleDir  string `yaml:"bundle_dir"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Pin        string `yaml:"pin"` // exact bundle version, overrides latest
}

type ScoringConfig struct {
	MaxBatchSize int     `yaml:"max_batch_size"`
	MinCoverage  float64 `yaml:"min_coverage"`
	Workers      int     `yaml:"workers"`
}

// CalibrationConfig is the fallback calibration used when a bundle schema
// does not carry its own trained constants.
type CalibrationConfig struct {
	Steepness float64 `yaml:"steepness"`
	Floor     float64 `yaml:"floor"`
	Ceil      float64 `yaml:"ceil"`
}

type TelemetryConfig struct {
	QueueSize              int    `yaml:"queue_size"`
	Workers                int    `yaml:"workers"`
	FilePath               string `yaml:"file_path"`   // JSONL sink, empty disables
	WebhookURL             string `yaml:"webhook_url"` // HTTP sink, empty disables
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8085"
	}

	if cfg.Store.Breaker.FailureThreshold <= 0 {
		cfg.Store.Breaker.FailureThreshold = 5
	}
	if cfg.Store.Breaker.SuccessThreshold <= 0 {
		cfg.Store.Breaker.SuccessThreshold = 2
	}
	if cfg.Store.Breaker.OpenTimeoutSeconds <= 0 {
		cfg.Store.Breaker.OpenTimeoutSeconds = 30
	}

	if cfg.Registry.BundleDir == "" {
		cfg.Registry.BundleDir = "./bundles"
	}
	if cfg.Registry.TTLSeconds <= 0 {
		cfg.Registry.TTLSeconds = 300
	}

	if cfg.Scoring.MaxBatchSize <= 0 {
		cfg.Scoring.MaxBatchSize = 2000
	}
	if cfg.Scoring.MinCoverage <= 0 {
		cfg.Scoring.MinCoverage = 0.5
	}
	if cfg.Scoring.Workers <= 0 {
		cfg.Scoring.Workers = 8
	}

	if cfg.Calibration.Steepness <= 0 {
		cfg.Calibration.Steepness = 8.0
	}
	if cfg.Calibration.Floor <= 0 {
		cfg.Calibration.Floor = 0.05
	}
	if cfg.Calibration.Ceil <= 0 {
		cfg.Calibration.Ceil = 0.95
	}

	if cfg.Telemetry.QueueSize <= 0 {
		cfg.Telemetry.QueueSize = 1000
	}
	if cfg.Telemetry.Workers <= 0 {
		cfg.Telemetry.Workers = 1
	}
	if cfg.Telemetry.ShutdownTimeoutSeconds <= 0 {
		cfg.Telemetry.ShutdownTimeoutSeconds = 2
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// RegistryTTL returns the bundle cache lease as a duration.
func (c *Config) RegistryTTL() time.Duration {
	return time.Duration(c.Registry.TTLSeconds) * time.Second
}

// BreakerOpenTimeout returns the breaker cool-down as a duration.
func (c *Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.Store.Breaker.OpenTimeoutSeconds) * time.Second
}

// TelemetryShutdownTimeout returns the emitter drain deadline as a duration.
func (c *Config) TelemetryShutdownTimeout() time.Duration {
	return time.Duration(c.Telemetry.ShutdownTimeoutSeconds) * time.Second
}
