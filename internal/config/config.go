// Package config loads server settings from an optional YAML file and the
// process environment. Environment variables win over the file.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/punchamoorthee/storehub/internal/storage"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	DBSource string        `yaml:"db_source"`
	Port     string        `yaml:"port"`
	Env      string        `yaml:"environment"`
	Overseer string        `yaml:"overseer"`
	LogLevel string        `yaml:"log_level"`
	Storage  StorageConfig `yaml:"storage"`
}

// StorageConfig selects and locates the ledger backend.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	SQLitePath   string `yaml:"sqlite_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// Default returns a configuration for a local in-memory ledger.
func Default() *Config {
	return &Config{
		Port:     "8080",
		Env:      "development",
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:      BackendMemory,
			SQLitePath:   filepath.Join("data", "storehub.db"),
			SnapshotPath: filepath.Join("data", "storehub.json"),
		},
	}
}

// Load reads the file named by STOREHUB_CONFIG (if set), applies environment
// overrides and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("STOREHUB_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(&c.DBSource, "DB_SOURCE")
	set(&c.Port, "SERVER_PORT")
	set(&c.Env, "ENVIRONMENT")
	set(&c.Overseer, "OVERSEER_ID")
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.Storage.Backend, "STORAGE_BACKEND")
	set(&c.Storage.SQLitePath, "SQLITE_PATH")
	set(&c.Storage.SnapshotPath, "SNAPSHOT_PATH")
}

func (c *Config) Validate() error {
	if c.Overseer == "" {
		return fmt.Errorf("OVERSEER_ID environment variable is required")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// OpenBackend opens the configured storage backend.
func (c *Config) OpenBackend(ctx context.Context) (storage.Backend, error) {
	switch c.Storage.Backend {
	case BackendFile:
		return storage.OpenFile(c.Storage.SnapshotPath)
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Storage.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		return storage.OpenSQLite(c.Storage.SQLitePath)
	case BackendPostgres:
		return storage.NewPostgres(ctx, c.DBSource)
	default:
		return storage.NewMemory(nil, nil), nil
	}
}
