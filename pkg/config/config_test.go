package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.Port != 49000 {
		t.Errorf("Port = %d, want 49000", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
host: 192.168.1.20
port: 49001
query_timeout: 500ms
fail_fast: true
log_file: /var/log/xpc/trace.cbor
subscriptions:
  - dataref: sim/flightmodel/position/y_agl
    frequency_hz: 20
  - dataref: sim/cockpit2/gauges/indicators/airspeed_kts_pilot
    frequency_hz: 5
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Host != "192.168.1.20" || cfg.Port != 49001 {
		t.Errorf("endpoint = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.QueryTimeout != 500*time.Millisecond {
		t.Errorf("QueryTimeout = %v", cfg.QueryTimeout)
	}
	if cfg.QueryFrequencyHz != DefaultQueryFrequencyHz {
		t.Errorf("QueryFrequencyHz = %d, want default", cfg.QueryFrequencyHz)
	}
	if !cfg.FailFast {
		t.Error("FailFast not set")
	}
	if len(cfg.Subscriptions) != 2 || cfg.Subscriptions[0].FrequencyHz != 20 {
		t.Errorf("Subscriptions = %+v", cfg.Subscriptions)
	}
}

func TestParsePartialFile(t *testing.T) {
	cfg, err := Parse([]byte("port: 49010\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
	if cfg.Port != 49010 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.QueryTimeout != DefaultQueryTimeout {
		t.Errorf("QueryTimeout = %v, want default", cfg.QueryTimeout)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"bad port", "port: 70000\n", ErrBadPort},
		{"negative port", "port: -1\n", ErrBadPort},
		{"empty dataref", "subscriptions:\n  - frequency_hz: 5\n", ErrEmptyDataref},
		{"zero frequency", "subscriptions:\n  - dataref: sim/x\n", ErrBadFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("port: [not a number]\n")); err == nil {
		t.Error("Parse accepted malformed YAML")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xpc.yaml")
	if err := os.WriteFile(path, []byte("host: sim.local\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "sim.local" {
		t.Errorf("Host = %q", cfg.Host)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted missing file")
	}
}
