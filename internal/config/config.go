// Package config holds the command line tool's settings.
//
// Precedence, lowest to highest: Default, the YAML file (LoadFile), the
// FTPSESSION_* environment (LoadFromEnv), then flags set on the command line.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in Config.Transport.
const (
	TransportWire     = "wire"
	TransportJlaffaye = "jlaffaye"
)

// Config is everything needed to build sessions for one server.
type Config struct {
	Server   string `yaml:"server"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Language selects the error message language, e.g. "es".
	Language string `yaml:"lang"`

	// Mode is "ascii" or "bin".
	Mode string `yaml:"mode"`

	Passive        bool `yaml:"passive"`
	AutoDisconnect bool `yaml:"auto_disconnect"`

	// Transport is "wire" or "jlaffaye".
	Transport string `yaml:"transport"`

	// Timeout takes a duration string ("1m30s"); a bare number is seconds,
	// as in FTPSESSION_TIMEOUT and --timeout.
	Timeout time.Duration `yaml:"timeout"`

	// BandwidthLimit is in bytes per second; 0 means unlimited.
	BandwidthLimit int64 `yaml:"bandwidth_limit"`

	// Jobs bounds the sessions used by the parallel command.
	Jobs int `yaml:"jobs"`

	// Messages is an optional YAML message catalog layered over the
	// built-in one.
	Messages string `yaml:"messages"`

	// Verbose is the -v count; not read from files.
	Verbose int `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		User:           "anonymous",
		Password:       "anonymous@",
		Language:       "en",
		Mode:           "ascii",
		Passive:        true,
		AutoDisconnect: true,
		Transport:      TransportWire,
		Timeout:        30 * time.Second,
		Jobs:           4,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value. ${VAR} references are expanded from the
// environment first, so passwords need not be stored in the file.
func LoadFile(cfg *Config, path string) error {
	// #nosec G304 -- path is from CLI args
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	secondsToDuration(doc.Content[0], "timeout")
	if err := doc.Content[0].Decode(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// secondsToDuration rewrites an integer value of key in mapping m as a
// duration string in seconds.
func secondsToDuration(m *yaml.Node, key string) {
	if m.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		v := m.Content[i+1]
		if m.Content[i].Value == key && v.Kind == yaml.ScalarNode && v.Tag == "!!int" {
			v.Tag = "!!str"
			v.Value += "s"
		}
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}
	if c.Mode != "ascii" && c.Mode != "bin" {
		errs = append(errs, fmt.Sprintf("mode must be ascii or bin, got %q", c.Mode))
	}
	if c.Transport != TransportWire && c.Transport != TransportJlaffaye {
		errs = append(errs, fmt.Sprintf("transport must be %s or %s, got %q", TransportWire, TransportJlaffaye, c.Transport))
	}
	if c.Transport == TransportJlaffaye && !c.Passive {
		errs = append(errs, "the jlaffaye transport requires passive mode")
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must not be negative")
	}
	if c.BandwidthLimit < 0 {
		errs = append(errs, "bandwidth_limit must not be negative")
	}
	if c.Jobs < 1 {
		errs = append(errs, "jobs must be at least 1")
	}
	if c.Language == "" {
		errs = append(errs, "lang is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
