package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"FMB_TCP_HOST", "FMB_TCP_PORT", "FMB_RESPONSE_TIMEOUT_S", "FMB_READ_TIMEOUT_S",
		"FMB_DOUT1_IO_ID", "FMB_TIMEOUT_ZERO_S", "FMB_ACTIVATION_DURATION_S", "FMB_METRICS_ADDR",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:12345" {
		t.Errorf("Addr() = %q, want 0.0.0.0:12345", cfg.Addr())
	}
	if cfg.ResponseTimeout() != 5*time.Second {
		t.Errorf("ResponseTimeout() = %v, want 5s", cfg.ResponseTimeout())
	}
	if cfg.ReadTimeout() != 30*time.Second {
		t.Errorf("ReadTimeout() = %v, want 30s", cfg.ReadTimeout())
	}
	if cfg.Dout1IOID != 179 {
		t.Errorf("Dout1IOID = %d, want 179", cfg.Dout1IOID)
	}
	if cfg.TimeoutZero() != 12*time.Hour {
		t.Errorf("TimeoutZero() = %v, want 12h", cfg.TimeoutZero())
	}
	if cfg.ActivationDuration() != 4000*time.Second {
		t.Errorf("ActivationDuration() = %v, want 4000s", cfg.ActivationDuration())
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
}

func TestLoadOverride(t *testing.T) {
	os.Setenv("FMB_TCP_PORT", "9999")
	defer os.Unsetenv("FMB_TCP_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TCPPort != 9999 {
		t.Errorf("TCPPort = %d, want 9999", cfg.TCPPort)
	}
}
