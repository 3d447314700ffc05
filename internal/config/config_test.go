package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigPath, EnvDBDriver, EnvDBDSN, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultLockTimeout, cfg.Store.LockTimeout.Duration())
	assert.True(t, cfg.Features.NodeClassification)
	assert.False(t, cfg.Features.ReadOnly)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://localhost/nodeclass
store:
  lock_timeout: 250ms
features:
  read_only: true
log:
  level: debug
  format: json
`)

	cfg, got, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.LockTimeout.Duration())
	assert.True(t, cfg.Features.ReadOnly)
	assert.True(t, cfg.Features.NodeClassification, "omitted flag keeps its default")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
}

func TestLoadFromPathDisablesClassification(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "features:\n  node_classification: false\n")

	cfg, _, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.False(t, cfg.Features.NodeClassification)
	assert.False(t, cfg.Features.AllowsClassificationEdits())
	assert.True(t, cfg.Features.AllowsMutation())
}

func TestLoadFromPathEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBDSN, "file:override.db")
	t.Setenv(EnvLogLevel, "warn")

	path := writeConfig(t, "database:\n  dsn: file:from-file.db\n")

	cfg, _, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "file:override.db", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromPathInvalid(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
database:
  driver: oracle
log:
  level: loud
  format: xml
`)

	_, _, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoadFromPathMissing(t *testing.T) {
	_, _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFeatures(t *testing.T) {
	tests := []struct {
		name           string
		features       Features
		mutation       bool
		classification bool
	}{
		{"defaults", DefaultFeatures(), true, true},
		{"classification disabled", Features{NodeClassification: false}, true, false},
		{"read only", Features{NodeClassification: true, ReadOnly: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mutation, tt.features.AllowsMutation())
			assert.Equal(t, tt.classification, tt.features.AllowsClassificationEdits())
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Seed = SeedConfig{Path: "/srv/seed.yaml", Watch: true}
	cfg.Store.LockTimeout = Duration(2 * time.Second)
	require.NoError(t, cfg.Save(configPath))

	loaded, _, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Seed, loaded.Seed)
	assert.Equal(t, 2*time.Second, loaded.Store.LockTimeout.Duration())
}

func TestFindConfigPath(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	require.NoError(t, DefaultConfig().Save(configPath))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	assert.NotEmpty(t, FindConfigPath(), "config in working directory")

	// Explicit path that does not exist falls back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	assert.NotEmpty(t, FindConfigPath())

	explicit := writeConfig(t, "version: 1\n")
	t.Setenv(EnvConfigPath, explicit)
	assert.Equal(t, explicit, FindConfigPath())
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, d.Duration())

	marshaled, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", marshaled)
}

func TestSearchPathsOrder(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, "/explicit.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/ops")

	paths := SearchPaths()
	require.Len(t, paths, 5)
	assert.Equal(t, "/explicit.yaml", paths[0])
	assert.Equal(t, ConfigFileName, filepath.Base(paths[1]))
	assert.Equal(t, "/xdg/nodeclass/config.yaml", paths[2])
	assert.Equal(t, "/home/ops/.config/nodeclass/config.yaml", paths[3])
	assert.Equal(t, "/etc/nodeclass/config.yaml", paths[4])
}
