package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("device:\n  host: 10.0.0.5\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.Host != "10.0.0.5" {
		t.Errorf("Device.Host = %q, want %q", cfg.Device.Host, "10.0.0.5")
	}
	if got := cfg.Device.ScanInterval.Duration(); got != 10*time.Second {
		t.Errorf("ScanInterval = %v, want 10s", got)
	}
	if got := cfg.Device.Timeout.Duration(); got != 8*time.Second {
		t.Errorf("Timeout = %v, want 8s", got)
	}
	if cfg.Device.RateLimitRPS != 5.0 {
		t.Errorf("RateLimitRPS = %v, want 5", cfg.Device.RateLimitRPS)
	}
	if cfg.Options.KeepMasterLight {
		t.Error("KeepMasterLight should default to false")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.MQTT.TopicPrefix != "wledd" {
		t.Errorf("MQTT.TopicPrefix = %q, want wledd", cfg.MQTT.TopicPrefix)
	}
	if cfg.EventBus.GetWorkers() != 2 {
		t.Errorf("GetWorkers() = %d, want 2", cfg.EventBus.GetWorkers())
	}
	if cfg.Ledger.Retention() != 14*24*time.Hour {
		t.Errorf("Retention() = %v, want 14 days", cfg.Ledger.Retention())
	}
}

func TestParse_MissingHost(t *testing.T) {
	_, err := Parse([]byte("options:\n  keep_master_light: true\n"))
	if !errors.Is(err, ErrMissingHost) {
		t.Fatalf("Parse() error = %v, want ErrMissingHost", err)
	}
}

func TestParse_Overrides(t *testing.T) {
	raw := `
device:
  host: wled.local
  scan_interval: 30s
options:
  keep_master_light: true
mqtt:
  enabled: true
  qos: 7
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Device.ScanInterval.Duration(); got != 30*time.Second {
		t.Errorf("ScanInterval = %v, want 30s", got)
	}
	if !cfg.Options.KeepMasterLight {
		t.Error("KeepMasterLight should be true")
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("invalid QoS should fall back to 1, got %d", cfg.MQTT.QoS)
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("device:\n  host: x\n  timeout: soon\n"))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WLEDD_TEST_HOST", "192.168.1.77")

	tests := []struct {
		in   string
		want string
	}{
		{"${WLEDD_TEST_HOST}", "192.168.1.77"},
		{"${WLEDD_TEST_HOST:fallback}", "192.168.1.77"},
		{"${WLEDD_TEST_UNSET:fallback}", "fallback"},
		{"${WLEDD_TEST_UNSET}", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("WLEDD_TEST_HOST", "strip.local")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("device:\n  host: ${WLEDD_TEST_HOST}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Host != "strip.local" {
		t.Errorf("Device.Host = %q, want strip.local", cfg.Device.Host)
	}
}
