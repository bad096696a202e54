// Package config provides configuration loading and management for hostsync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/munichmade/hostsync/internal/paths"
)

// Config represents the complete hostsync configuration.
type Config struct {
	Zones   []string      `yaml:"zones"`
	Hosts   HostsConfig   `yaml:"hosts"`
	Source  SourceConfig  `yaml:"source"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// HostsConfig configures where the hosts file is read from and written to.
// "-" means standard input or output.
type HostsConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// SourceConfig selects and configures the record source.
type SourceConfig struct {
	Type        string            `yaml:"type"`
	RecordTypes []string          `yaml:"record_types"`
	Settings    map[string]string `yaml:"settings,omitempty"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible default values.
// Output defaults to stdout so nothing is overwritten unless asked for.
func Default() *Config {
	return &Config{
		Hosts: HostsConfig{
			Input:  paths.HostsFile(),
			Output: "-",
		},
		Source: SourceConfig{
			Type:        "route53",
			RecordTypes: []string{"A"},
		},
		Watch: WatchConfig{
			Interval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration from the default config file.
func Load() (*Config, error) {
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile reads the configuration from the specified file path.
// A missing file yields the defaults; nothing is written.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults and overlay with file values
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration to the specified file path.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate checks the configuration for errors.
// Zones may be empty here; commands require at least one at run time.
func (c *Config) Validate() error {
	for _, z := range c.Zones {
		if strings.TrimSpace(z) == "" {
			return fmt.Errorf("zones must not contain empty names")
		}
	}

	if c.Hosts.Input == "" {
		return fmt.Errorf("hosts.input is required")
	}
	if c.Hosts.Output == "" {
		return fmt.Errorf("hosts.output is required")
	}

	if c.Source.Type == "" {
		return fmt.Errorf("source.type is required")
	}
	validTypes := map[string]bool{"A": true, "AAAA": true}
	for _, t := range c.Source.RecordTypes {
		if !validTypes[strings.ToUpper(t)] {
			return fmt.Errorf("source.record_types: unsupported type %q (want A or AAAA)", t)
		}
	}

	if c.Watch.Interval < time.Second {
		return fmt.Errorf("watch.interval must be at least 1s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be one of: text, json")
	}

	return nil
}

// Setting returns a source setting, or def when unset.
func (c *Config) Setting(key, def string) string {
	if v, ok := c.Source.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// SetSettingDefault sets a source setting unless the config already has one.
func (c *Config) SetSettingDefault(key, value string) {
	if value == "" || c.Setting(key, "") != "" {
		return
	}
	if c.Source.Settings == nil {
		c.Source.Settings = make(map[string]string)
	}
	c.Source.Settings[key] = value
}
