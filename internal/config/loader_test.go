package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Realtime.HeartbeatInterval != 30*time.Second {
		t.Errorf("expected heartbeat 30s, got %v", cfg.Realtime.HeartbeatInterval)
	}
	if cfg.EventStore.Backend != "postgres" {
		t.Errorf("expected postgres backend, got %s", cfg.EventStore.Backend)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
eventstore:
  backend: "memory"
realtime:
  rate_max: 20
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.EventStore.Backend != "memory" {
		t.Errorf("expected memory backend, got %s", cfg.EventStore.Backend)
	}
	if cfg.Realtime.RateMax != 20 {
		t.Errorf("expected rate_max 20, got %d", cfg.Realtime.RateMax)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/albatross.yaml"); err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ALBATROSS_PORT", "7070")
	t.Setenv("ALBATROSS_EVENTSTORE", "memory")
	t.Setenv("ALBATROSS_WS_IDLE_TIMEOUT", "2m")
	t.Setenv("ALBATROSS_PROJECTION_PIREP_QUEUE", "pireps-blue")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.EventStore.Backend != "memory" {
		t.Errorf("expected memory backend, got %s", cfg.EventStore.Backend)
	}
	if cfg.Realtime.IdleTimeout != 2*time.Minute {
		t.Errorf("expected idle timeout 2m, got %v", cfg.Realtime.IdleTimeout)
	}
	if cfg.Projection.PirepQueue != "pireps-blue" {
		t.Errorf("expected pirep queue pireps-blue, got %s", cfg.Projection.PirepQueue)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Defaults()
	cfg.EventStore.Backend = "cassandra"
	if err := validate(&cfg); err == nil {
		t.Fatal("expected error for unknown eventstore backend")
	}
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/albatross.yaml")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port, got %s", cfg.Server.Port)
	}
}
