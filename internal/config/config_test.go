package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridchaos.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":8000" || cfg.Server.MetricsAddr != ":9090" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Grid.CriticalVoltagePu != 0.90 || cfg.Grid.UnstableVoltagePu != 0.95 {
		t.Fatalf("unexpected health band defaults: %+v", cfg.Grid)
	}
	if cfg.Guardrail.DefaultMaxLoadLossPct != 0.20 {
		t.Fatalf("default guardrail threshold = %v, want 0.20", cfg.Guardrail.DefaultMaxLoadLossPct)
	}
	if cfg.Telemetry.Enabled {
		t.Fatal("telemetry enabled by default")
	}
	if cfg.Tracing.Exporter != "stdout" || cfg.Tracing.SampleRatio != 1.0 {
		t.Fatalf("unexpected tracing defaults: %+v", cfg.Tracing)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  read_only: true
grid:
  critical_voltage_pu: 0.85
  unstable_voltage_pu: 0.93
guardrail:
  default_max_load_loss_pct: 0.35
telemetry:
  enabled: true
  url: http://influx.internal:8086
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9000" || !cfg.Server.ReadOnly {
		t.Fatalf("server overrides not applied: %+v", cfg.Server)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.MetricsAddr != ":9090" {
		t.Fatalf("metrics addr = %q, want default", cfg.Server.MetricsAddr)
	}
	if cfg.Grid.CriticalVoltagePu != 0.85 || cfg.Grid.UnstableVoltagePu != 0.93 {
		t.Fatalf("grid overrides not applied: %+v", cfg.Grid)
	}
	if cfg.Guardrail.DefaultMaxLoadLossPct != 0.35 {
		t.Fatalf("guardrail override not applied: %v", cfg.Guardrail.DefaultMaxLoadLossPct)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.URL != "http://influx.internal:8086" {
		t.Fatalf("telemetry overrides not applied: %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.Org != "gridchaos_org" {
		t.Fatalf("telemetry org = %q, want default", cfg.Telemetry.Org)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  url: http://from-file:8086
  token: file-token
`)
	t.Setenv("INFLUXDB_URL", "http://from-env:8086")
	t.Setenv("INFLUXDB_TOKEN", "env-token")
	t.Setenv("INFLUXDB_ORG", "env-org")
	t.Setenv("INFLUXDB_BUCKET", "env-bucket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telemetry.URL != "http://from-env:8086" {
		t.Fatalf("url = %q, env must win over file", cfg.Telemetry.URL)
	}
	if cfg.Telemetry.Token != "env-token" || cfg.Telemetry.Org != "env-org" || cfg.Telemetry.Bucket != "env-bucket" {
		t.Fatalf("env overrides not applied: %+v", cfg.Telemetry)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadRejectsInvertedHealthBands(t *testing.T) {
	path := writeConfig(t, `
grid:
  critical_voltage_pu: 0.97
  unstable_voltage_pu: 0.95
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for critical threshold above unstable")
	}
	if !strings.Contains(err.Error(), "critical") {
		t.Fatalf("error %q does not name the offending threshold", err)
	}
}

func TestLoadRejectsOutOfRangeGuardrail(t *testing.T) {
	for _, body := range []string{
		"guardrail:\n  default_max_load_loss_pct: 0\n",
		"guardrail:\n  default_max_load_loss_pct: -0.2\n",
		"guardrail:\n  default_max_load_loss_pct: 1.5\n",
	} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("config %q accepted, want rejection", body)
		}
	}
}
