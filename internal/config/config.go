// Package config loads the configuration of the asyncore command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for the asyncore command.
type Config struct {
	LogLevel         string        `yaml:"log_level"`
	Greeting         string        `yaml:"greeting"`
	Endpoints        []Endpoint    `yaml:"endpoints"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// Endpoint is a listening address, with TLS iff both files are set.
type Endpoint struct {
	Address  string `yaml:"address"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TLS reports whether the endpoint is configured for TLS.
func (e Endpoint) TLS() bool {
	return e.CertFile != "" && e.KeyFile != ""
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		LogLevel:         "info",
		Greeting:         "Hello from asyncore!\n",
		HandshakeTimeout: 10 * time.Second,
	}
}

// Load reads a YAML file on top of [Default], then validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of [Default], rejecting unknown keys.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %v", c.HandshakeTimeout)
	}
	for i, e := range c.Endpoints {
		if e.Address == "" {
			return fmt.Errorf("endpoints[%d]: address is required", i)
		}
		if (e.CertFile == "") != (e.KeyFile == "") {
			return fmt.Errorf("endpoints[%d]: cert_file and key_file must be set together", i)
		}
	}
	return nil
}

// Level returns the parsed log level. It assumes a validated config.
func (c Config) Level() logiface.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return logiface.LevelInformational
	}
	return level
}

// ParseLevel maps a level name, as printed by [logiface.Level.String] or
// its common long form, to a level.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational", "":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}
