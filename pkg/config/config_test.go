package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp switches into a fresh directory for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
port: "8000"
env: "yaml-env"
database:
  host: "yaml-db-host"
  database: "yaml_db"
`)

	t.Setenv("PORT", "9999")
	t.Setenv("PGHOST", "env-db-host")

	cfg, err := Load("", "test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("expected Port=9999 from env, got %q", cfg.Port)
	}
	if cfg.Database.Host != "env-db-host" {
		t.Errorf("expected Database.Host=env-db-host from env, got %q", cfg.Database.Host)
	}
	if cfg.Env != "yaml-env" {
		t.Errorf("expected Env=yaml-env from YAML, got %q", cfg.Env)
	}
	if cfg.Database.Database != "yaml_db" {
		t.Errorf("expected Database.Database=yaml_db from YAML, got %q", cfg.Database.Database)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %q", cfg.Version)
	}
}

func TestLoad_BaseURLAutoDerive(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
port: "8123"
`)

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8123" {
		t.Errorf("expected auto-derived BaseURL, got %q", cfg.BaseURL)
	}
}

func TestLoad_BaseURLExplicit(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
port: "8000"
base_url: "https://trace.example.com/"
`)

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BaseURL != "https://trace.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
}

func TestLoad_BaseURLRejectsRelative(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
base_url: "trace.example.com"
`)

	if _, err := Load("", "test"); err == nil {
		t.Error("expected error for relative base_url")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"), "test")
	if err == nil {
		t.Fatal("expected error when explicit config file is missing")
	}
	if !strings.Contains(err.Error(), "nope.yaml") {
		t.Errorf("expected error to name the file, got %v", err)
	}
}

func TestLoad_DefaultFileAbsentUsesEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "8088")
	t.Setenv("QUALITY_TERMINAL_LOCK", "true")

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8088" {
		t.Errorf("expected Port=8088, got %q", cfg.Port)
	}
	if !cfg.Quality.TerminalLock {
		t.Error("expected TerminalLock=true from env")
	}
	if cfg.BaseURL != "http://localhost:8088" {
		t.Errorf("expected auto-derived BaseURL, got %q", cfg.BaseURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
env: "test"
`)

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Locator.SizePx != 256 {
		t.Errorf("expected Locator.SizePx=256 (default), got %d", cfg.Locator.SizePx)
	}
	if cfg.Locator.MaxRetries != 2 {
		t.Errorf("expected Locator.MaxRetries=2 (default), got %d", cfg.Locator.MaxRetries)
	}
	if cfg.Quality.TerminalLock {
		t.Error("expected TerminalLock=false (default)")
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected Metrics.Enabled=true (default)")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected Database.Port=5432 (default), got %d", cfg.Database.Port)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("expected Database.MaxConnections=25 (default), got %d", cfg.Database.MaxConnections)
	}
	if cfg.Database.StatementTimeout != 30*time.Second {
		t.Errorf("expected Database.StatementTimeout=30s (default), got %v", cfg.Database.StatementTimeout)
	}
}

func TestLoad_LocatorFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
locator:
  size_px: 512
  max_retries: 0
quality:
  terminal_lock: true
`)

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Locator.SizePx != 512 {
		t.Errorf("expected Locator.SizePx=512, got %d", cfg.Locator.SizePx)
	}
	if cfg.Locator.MaxRetries != 0 {
		t.Errorf("expected Locator.MaxRetries=0, got %d", cfg.Locator.MaxRetries)
	}
	if !cfg.Quality.TerminalLock {
		t.Error("expected TerminalLock=true from YAML")
	}
}

func TestLoad_LocatorRetriesFromEnv(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
locator:
  max_retries: 5
`)
	t.Setenv("LOCATOR_MAX_RETRIES", "0")

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Locator.MaxRetries != 0 {
		t.Errorf("expected Locator.MaxRetries=0 from env, got %d", cfg.Locator.MaxRetries)
	}
}

func TestLoad_LocatorRetriesDefaultWithoutFile(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", "test")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Locator.MaxRetries != DefaultLocatorRetries {
		t.Errorf("expected Locator.MaxRetries=%d (default), got %d", DefaultLocatorRetries, cfg.Locator.MaxRetries)
	}
}

func TestLoad_InvalidLocatorSize(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
locator:
  size_px: -1
`)

	if _, err := Load("", "test"); err == nil {
		t.Error("expected error for negative locator size")
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "herb",
		Password: "secret",
		Database: "herbtrace",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	want := "host=db.internal port=5433 user=herb password=secret dbname=herbtrace sslmode=require"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	if got := resolveHostForDocker("db.internal"); got != "db.internal" {
		t.Errorf("expected non-loopback host unchanged, got %q", got)
	}
}
