package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Addr != ":8085" {
		t.Fatalf("default addr = %q", cfg.Server.Addr)
	}
	if cfg.Registry.TTLSeconds != 300 {
		t.Fatalf("default ttl = %d", cfg.Registry.TTLSeconds)
	}
	if cfg.Scoring.MaxBatchSize != 2000 || cfg.Scoring.Workers != 8 {
		t.Fatalf("default scoring = %+v", cfg.Scoring)
	}
	if cfg.Calibration.Steepness != 8.0 {
		t.Fatalf("default steepness = %v", cfg.Calibration.Steepness)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9000"
registry:
  bundle_dir: "/var/lib/leadscore/bundles"
  pin: "1.2.0"
scoring:
  max_batch_size: 500
telemetry:
  file_path: "/tmp/events.jsonl"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Registry.Pin != "1.2.0" {
		t.Fatalf("pin = %q", cfg.Registry.Pin)
	}
	if cfg.Scoring.MaxBatchSize != 500 {
		t.Fatalf("max_batch_size = %d", cfg.Scoring.MaxBatchSize)
	}
	// Unset fields still pick up defaults.
	if cfg.Scoring.Workers != 8 || cfg.Telemetry.QueueSize != 1000 || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"nil handled elsewhere", nil, ""},
		{"missing addr", func(c *Config) { c.Server.Addr = " " }, "server.addr"},
		{"missing bundle dir", func(c *Config) { c.Registry.BundleDir = "" }, "bundle_dir"},
		{"negative ttl", func(c *Config) { c.Registry.TTLSeconds = -1 }, "ttl_seconds"},
		{"coverage above one", func(c *Config) { c.Scoring.MinCoverage = 1.5 }, "min_coverage"},
		{"floor above ceil", func(c *Config) { c.Calibration.Floor = 0.96 }, "floor"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad webhook scheme", func(c *Config) { c.Telemetry.WebhookURL = "ftp://collector" }, "webhook_url"},
		{"webhook no host", func(c *Config) { c.Telemetry.WebhookURL = "http://" }, "webhook_url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.mutate == nil {
				if err := Validate(nil); err == nil {
					t.Fatal("nil config must be rejected")
				}
				return
			}
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
