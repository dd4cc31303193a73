package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Config{
		LogLevel:       "info",
		LogFormat:      "console",
		TakenUsernames: []string{"admin", "root", "bob"},
		RetryMax:       2,
		CacheSize:      256,
		CacheTTL:       30 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Backend() != BackendStatic {
		t.Fatalf("backend = %s, want static", cfg.Backend())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FORMSTATE_AVAILABILITY_URL", "https://users.example.test/check")
	t.Setenv("FORMSTATE_TAKEN_USERNAMES", "carol,dave")
	t.Setenv("FORMSTATE_CACHE_TTL", "2m")
	t.Setenv("FORMSTATE_AVAILABILITY_LATENCY", "150ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend() != BackendHTTP {
		t.Fatalf("backend = %s, want http", cfg.Backend())
	}
	if diff := cmp.Diff([]string{"carol", "dave"}, cfg.TakenUsernames); diff != "" {
		t.Fatalf("taken mismatch (-want +got):\n%s", diff)
	}
	if cfg.CacheTTL != 2*time.Minute || cfg.AvailabilityLatency != 150*time.Millisecond {
		t.Fatalf("durations = %v, %v", cfg.CacheTTL, cfg.AvailabilityLatency)
	}
}

func TestLoadSQLBackend(t *testing.T) {
	t.Setenv("FORMSTATE_AVAILABILITY_DSN", "file:users.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend() != BackendSQL {
		t.Fatalf("backend = %s, want sql", cfg.Backend())
	}
}

func TestLoadRejectsConflicts(t *testing.T) {
	t.Setenv("FORMSTATE_AVAILABILITY_URL", "https://users.example.test/check")
	t.Setenv("FORMSTATE_AVAILABILITY_DSN", "file:users.db")
	if _, err := Load(); err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("FORMSTATE_CACHE_SIZE", "lots")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
