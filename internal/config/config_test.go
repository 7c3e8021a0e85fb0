package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8420" {
		t.Errorf("listen: got %q, want 127.0.0.1:8420", cfg.Listen)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "notes.db" {
		t.Errorf("storage defaults: got %+v", cfg.Storage)
	}
	if !cfg.Notifications.Enabled {
		t.Error("notifications should default to enabled")
	}
	if cfg.Export.Directory != "." {
		t.Errorf("export directory: got %q, want .", cfg.Export.Directory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingConfigFileIsFine(t *testing.T) {
	cfg, err := Load("/nonexistent/notesd.yaml")
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend: got %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notesd.yaml")
	yaml := []byte("listen: 127.0.0.1:9000\nstorage:\n  backend: file\n  path: /var/lib/notesd\n")
	if err := os.WriteFile(path, yaml, 0644); err != nil {
		t.Fatalf("writing config file failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("listen: got %q, want 127.0.0.1:9000", cfg.Listen)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Path != "/var/lib/notesd" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	// Keys absent from the file keep their defaults
	if !cfg.Notifications.Enabled {
		t.Error("notifications should stay enabled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOTESD_LISTEN", "127.0.0.1:9999")
	t.Setenv("NOTESD_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Errorf("listen: got %q, want 127.0.0.1:9999", cfg.Listen)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend: got %q, want memory", cfg.Storage.Backend)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory backend needs no path", func(c *Config) { c.Storage.Backend = "memory"; c.Storage.Path = "" }, false},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = "sqlite"; c.Storage.Path = "" }, true},
		{"file without path", func(c *Config) { c.Storage.Backend = "file"; c.Storage.Path = "" }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"empty listen", func(c *Config) { c.Listen = "" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
