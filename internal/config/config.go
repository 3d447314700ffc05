// Package config provides configuration management for nodeclass.
//
// Config file locations (priority order):
//  1. $NODECLASS_CONFIG
//  2. ./nodeclass.yaml
//  3. ~/.config/nodeclass/config.yaml
//  4. /etc/nodeclass/config.yaml
//
// Environment variables NODECLASS_DB_DRIVER, NODECLASS_DB_DSN and
// NODECLASS_LOG_LEVEL override the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvDBDriver = "NODECLASS_DB_DRIVER"
	EnvDBDSN    = "NODECLASS_DB_DSN"
	EnvLogLevel = "NODECLASS_LOG_LEVEL"
)

// Defaults
const (
	DefaultDriver          = "sqlite"
	DefaultDSN             = "./nodeclass.db"
	DefaultAddr            = ":8080"
	DefaultLockTimeout     = 5 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", cfg.Validate()
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	// Unmarshal over the defaults so omitted booleans keep their default
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Database: DatabaseConfig{Driver: DefaultDriver, DSN: DefaultDSN},
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     Duration(DefaultReadTimeout),
			WriteTimeout:    Duration(DefaultWriteTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Store:    StoreConfig{LockTimeout: Duration(DefaultLockTimeout)},
		Features: DefaultFeatures(),
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultDriver {
		c.Database.DSN = DefaultDSN
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Store.LockTimeout <= 0 {
		c.Store.LockTimeout = Duration(DefaultLockTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv lets the environment override file settings
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		result = multierror.Append(result, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		result = multierror.Append(result, fmt.Errorf("database.dsn: required"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format: unsupported format %q", c.Log.Format))
	}
	if c.Seed.Watch && c.Seed.Path == "" {
		result = multierror.Append(result, fmt.Errorf("seed.watch: requires seed.path"))
	}

	return result.ErrorOrNil()
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Database: %s, Listen: %s\n", c.Database.Driver, c.Server.Addr)
	summary += fmt.Sprintf("Lock timeout: %s, Features: %s", c.Store.LockTimeout.Duration(), c.Features)
	if c.Seed.Path != "" {
		summary += fmt.Sprintf("\nSeed: %s (watch=%v)", c.Seed.Path, c.Seed.Watch)
	}
	return summary
}
