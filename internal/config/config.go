package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Listen        string              `koanf:"listen"`
	Storage       StorageConfig       `koanf:"storage"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Export        ExportConfig        `koanf:"export"`
}

type StorageConfig struct {
	// Backend is one of: memory, file, sqlite.
	Backend string `koanf:"backend"`
	// Path is the database file for sqlite, or the directory holding
	// the JSON documents for file.
	Path string `koanf:"path"`
}

type NotificationsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Icon    string `koanf:"icon"`
}

type ExportConfig struct {
	Directory string `koanf:"directory"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen": "127.0.0.1:8420",
		"storage": map[string]interface{}{
			"backend": "sqlite",
			"path":    "notes.db",
		},
		"notifications": map[string]interface{}{
			"enabled": true,
			"icon":    "",
		},
		"export": map[string]interface{}{
			"directory": ".",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML
// file at configPath, then NOTESD_* environment variables
// (NOTESD_STORAGE_BACKEND=memory overrides storage.backend).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("NOTESD_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "NOTESD_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s (supported: memory, file, sqlite)", c.Storage.Backend)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}
