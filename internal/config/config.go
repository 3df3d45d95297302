// Package config loads pcd configuration from YAML or TOML files.
//
// Files may reference environment variables as ${VAR}. Missing fields keep
// their defaults. The result is checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pcd/internal/device"
)

//go:embed schema.cue
var schemaCUE string

// MaxCapacity is the largest device capacity the schema accepts.
const MaxCapacity = device.MaxCapacity

// Config represents the complete pcd configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device" toml:"device" json:"device"`
	Journal JournalConfig `yaml:"journal" toml:"journal" json:"journal"`
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// DeviceConfig describes the device to register.
type DeviceConfig struct {
	Name     string `yaml:"name" toml:"name" json:"name"`
	Class    string `yaml:"class" toml:"class" json:"class"`
	Capacity int    `yaml:"capacity" toml:"capacity" json:"capacity"`
}

// JournalConfig holds the operation journal location.
// An empty path disables journaling.
type JournalConfig struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:     "pcd",
			Class:    "pseudo_char_class",
			Capacity: device.DefaultCapacity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file. Files ending in .toml are decoded as
// TOML, everything else as YAML. Environment variables in the format
// ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(expanded, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing config file: unknown key %q", undecoded[0].String())
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		// An empty file decodes to io.EOF; defaults stand.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to "".
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
