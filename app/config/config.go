// Package config loads server settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Port to listen on; 0 picks an ephemeral port.
	Port int `yaml:"port"`
	// LineSize bounds the request line and every header line, CRLF included.
	LineSize int `yaml:"line_size"`
	// MaxEmptyReads is how many consecutive zero-byte reads a line read
	// tolerates before the connection is dropped.
	MaxEmptyReads int `yaml:"max_empty_reads"`
	// MaxBodySize is the largest request body, in bytes, a handler may read.
	MaxBodySize  int    `yaml:"max_body_size"`
	LogLevel     string `yaml:"log_level"`
	DocumentRoot string `yaml:"document_root"`
}

func Default() Config {
	return Config{
		Port:          8080,
		LineSize:      4096,
		MaxEmptyReads: 100,
		MaxBodySize:   1 << 20,
		LogLevel:      "info",
		DocumentRoot:  ".",
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LineSize < 4 {
		errs = append(errs, fmt.Errorf("line_size %d too small", c.LineSize))
	}
	if c.MaxEmptyReads < 1 {
		errs = append(errs, fmt.Errorf("max_empty_reads must be positive, got %d", c.MaxEmptyReads))
	}
	if c.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("max_body_size must not be negative, got %d", c.MaxBodySize))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr is the listen address on all interfaces.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
