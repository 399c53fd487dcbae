package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SaveMode != "debounced" {
		t.Errorf("save mode = %q, want debounced", cfg.SaveMode)
	}
	if cfg.DebounceInterval != 1200*time.Millisecond {
		t.Errorf("debounce interval = %v, want 1.2s", cfg.DebounceInterval)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("cache TTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.DashboardPort != 8080 {
		t.Errorf("dashboard port = %d, want 8080", cfg.DashboardPort)
	}
	if !cfg.Offline() {
		t.Error("expected offline mode with no remote configured")
	}
	if got, want := cfg.StorePath(), filepath.Join(dir, "devtab.db"); got != want {
		t.Errorf("store path = %q, want %q", got, want)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "remote_url: https://api.devtab.dev\nuser_id: u1\nsave_mode: manual\ncache_ttl: 2m\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Offline() {
		t.Error("expected online mode")
	}
	if cfg.SaveMode != "manual" {
		t.Errorf("save mode = %q, want manual", cfg.SaveMode)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Errorf("cache TTL = %v, want 2m", cfg.CacheTTL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "save_mode: manual\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("DEVTAB_SAVE_MODE", "debounced")
	t.Setenv("DEVTAB_USER_ID", "env-user")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SaveMode != "debounced" {
		t.Errorf("save mode = %q, want env override debounced", cfg.SaveMode)
	}
	if cfg.UserID != "env-user" {
		t.Errorf("user id = %q, want env-user", cfg.UserID)
	}
}

func TestLoadCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "devtab")

	if _, err := Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir was not created: %v", err)
	}
}

func TestOffline(t *testing.T) {
	cfg := &Config{RemoteURL: "https://api.devtab.dev"}
	if !cfg.Offline() {
		t.Error("expected offline without a user id")
	}
	cfg.UserID = "u1"
	if cfg.Offline() {
		t.Error("expected online with url and user id")
	}
}
