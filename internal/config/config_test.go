package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "5175" || cfg.Addr() != ":5175" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.CacheTTL != 10*time.Second || cfg.AutoStartAfter != 50*time.Second {
		t.Fatalf("timing defaults: %+v", cfg)
	}
	if cfg.Retention != 7*24*time.Hour {
		t.Fatalf("retention = %v", cfg.Retention)
	}
	if cfg.Production() {
		t.Fatal("default must not be production")
	}
	if cfg.SweepTokenHash != "" {
		t.Fatal("sweep endpoint must be disabled by default")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("CACHE_TTL", "15s")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr() != ":8080" || !cfg.Production() {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SweepInterval != 0 || cfg.CacheTTL != 15*time.Second {
		t.Fatalf("durations: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name, key, value, want string
	}{
		{"bad duration", "CACHE_TTL", "soon", "parse env:"},
		{"bad int", "SWEEP_WORKERS", "many", "parse env:"},
		{"zero auto start", "AUTO_START_AFTER", "0s", "AUTO_START_AFTER"},
		{"negative sweep", "SWEEP_INTERVAL", "-1m", "SWEEP_INTERVAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Parse()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}
