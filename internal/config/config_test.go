package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "pcd", cfg.Device.Name)
	assert.Equal(t, 512, cfg.Device.Capacity)
	assert.Equal(t, "", cfg.Journal.Path)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "pcd.yaml", `
device:
  name: scratch
  capacity: 4096
journal:
  path: /tmp/pcd.db
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "scratch", cfg.Device.Name)
	assert.Equal(t, "pseudo_char_class", cfg.Device.Class, "unset fields keep defaults")
	assert.Equal(t, 4096, cfg.Device.Capacity)
	assert.Equal(t, "/tmp/pcd.db", cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "pcd.toml", `
[device]
name = "mem"
class = "mem_class"
capacity = 64

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mem", cfg.Device.Name)
	assert.Equal(t, "mem_class", cfg.Device.Class)
	assert.Equal(t, 64, cfg.Device.Capacity)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PCD_TEST_JOURNAL", "/var/lib/pcd/journal.db")
	path := writeConfig(t, "pcd.yaml", `
journal:
  path: ${PCD_TEST_JOURNAL}
device:
  name: "pcd${PCD_TEST_UNSET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pcd/journal.db", cfg.Journal.Path)
	assert.Equal(t, "pcd", cfg.Device.Name)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "c.yaml", "device:\n  size: 10\n", "parsing config file"},
		{"unknown toml key", "c.toml", "[device]\nsize = 10\n", "unknown key"},
		{"malformed yaml", "c.yaml", "device: [\n", "parsing config file"},
		{"malformed toml", "c.toml", "[device\n", "parsing config file"},
		{"zero capacity", "c.yaml", "device:\n  capacity: 0\n", "capacity"},
		{"capacity too large", "c.yaml", fmt.Sprintf("device:\n  capacity: %d\n", MaxCapacity+1), "capacity"},
		{"bad name", "c.yaml", "device:\n  name: \"Bad Name\"\n", "name"},
		{"bad level", "c.yaml", "logging:\n  level: trace\n", "level"},
		{"bad format", "c.toml", "[logging]\nformat = \"xml\"\n", "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadOrDefault(writeConfig(t, "c.yaml", "device:\n  capacity: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Device.Capacity)
}

func TestValidate_MaxCapacityAccepted(t *testing.T) {
	cfg := Default()
	cfg.Device.Capacity = MaxCapacity
	assert.NoError(t, cfg.Validate())
}
