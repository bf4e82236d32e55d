// Package config loads process configuration. It is read once at startup
// and never reloaded.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Grid      GridConfig      `yaml:"grid"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// ReadOnly rejects every write operation at the transport layer.
	ReadOnly bool `yaml:"read_only"`
}

// GridConfig holds the voltage thresholds defining the health bands.
type GridConfig struct {
	CriticalVoltagePu float64 `yaml:"critical_voltage_pu"`
	UnstableVoltagePu float64 `yaml:"unstable_voltage_pu"`
}

type GuardrailConfig struct {
	// DefaultMaxLoadLossPct applies when a guardrailed experiment does not
	// specify its own threshold.
	DefaultMaxLoadLossPct float64 `yaml:"default_max_load_loss_pct"`
}

// TelemetryConfig holds the InfluxDB connection parameters for the telemetry
// sink. Credentials may be overridden via INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG, and INFLUXDB_BUCKET.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8000",
			MetricsAddr: ":9090",
		},
		Grid: GridConfig{
			CriticalVoltagePu: 0.90,
			UnstableVoltagePu: 0.95,
		},
		Guardrail: GuardrailConfig{
			DefaultMaxLoadLossPct: 0.20,
		},
		Telemetry: TelemetryConfig{
			URL:    "http://localhost:8086",
			Org:    "gridchaos_org",
			Bucket: "grid_telemetry",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "gridchaos",
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Environment variables override telemetry credentials either
// way.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Grid.CriticalVoltagePu > cfg.Grid.UnstableVoltagePu {
		return Config{}, fmt.Errorf("config: critical voltage threshold %.3f above unstable threshold %.3f",
			cfg.Grid.CriticalVoltagePu, cfg.Grid.UnstableVoltagePu)
	}
	if p := cfg.Guardrail.DefaultMaxLoadLossPct; p <= 0 || p > 1 {
		return Config{}, fmt.Errorf("config: default max load loss %.3f outside (0,1]", p)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		cfg.Telemetry.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		cfg.Telemetry.Org = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		cfg.Telemetry.Bucket = v
	}
}
