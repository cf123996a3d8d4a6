package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKTIMER_PORT", "7070")
	t.Setenv("TASKTIMER_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFrom_YAMLPartialOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
storage:
  path: "/tmp/other.db"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Storage.Path != "/tmp/other.db" {
		t.Errorf("got path %q, want /tmp/other.db", cfg.Storage.Path)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("driver default lost: %q", cfg.Storage.Driver)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port default lost: %q", cfg.Server.Port)
	}
}

func TestLoadFrom_InvalidAfterEnv(t *testing.T) {
	t.Setenv("TASKTIMER_STORAGE_DRIVER", "bolt")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.HasPrefix(err.Error(), "config validate:") {
		t.Errorf("expected wrapped validation error, got %v", err)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "env.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "6060"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, yamlPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected port from TASKTIMER_CONFIG file, got %q", cfg.Server.Port)
	}
}
