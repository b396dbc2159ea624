package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got error: %v", err)
	}

	if !cfg.Persistence.Enabled {
		t.Error("expected persistence enabled by default")
	}
	if cfg.Persistence.Directory != "state" {
		t.Errorf("expected default state directory, got %q", cfg.Persistence.Directory)
	}
	if cfg.Persistence.Retention != 2 {
		t.Errorf("expected retention 2 by default, got %d", cfg.Persistence.Retention)
	}
	if cfg.Snapshot.Interval != 5*time.Minute {
		t.Errorf("expected 5m snapshot interval by default, got %v", cfg.Snapshot.Interval)
	}
	if cfg.Server.Addr != ":1884" {
		t.Errorf("expected default admin addr, got %q", cfg.Server.Addr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KESTREL_PERSISTENCE_RETENTION", "5")
	t.Setenv("KESTREL_SNAPSHOT_INTERVAL", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Persistence.Retention != 5 {
		t.Errorf("env override ignored, retention = %d", cfg.Persistence.Retention)
	}
	if cfg.Snapshot.Interval != 30*time.Second {
		t.Errorf("env override ignored, interval = %v", cfg.Snapshot.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestreld.yaml")
	content := []byte("persistence:\n  directory: /var/lib/kestrel\n  retention: 3\nsnapshot:\n  interval: 1m\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Persistence.Directory != "/var/lib/kestrel" {
		t.Errorf("directory = %q", cfg.Persistence.Directory)
	}
	if cfg.Persistence.Retention != 3 {
		t.Errorf("retention = %d", cfg.Persistence.Retention)
	}
	if cfg.Snapshot.Interval != time.Minute {
		t.Errorf("interval = %v", cfg.Snapshot.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"zero retention", func(c *Config) { c.Persistence.Retention = 0 }, true},
		{"no directory", func(c *Config) { c.Persistence.Directory = "" }, true},
		{"no directory with persistence disabled", func(c *Config) {
			c.Persistence.Enabled = false
			c.Persistence.Directory = ""
		}, false},
		{"zero interval", func(c *Config) { c.Snapshot.Interval = 0 }, true},
		{"no addr with server enabled", func(c *Config) { c.Server.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
