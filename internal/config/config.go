// Package config resolves client and CLI defaults. Values layer in order:
// built-in defaults, then the YAML config file, then TRACK_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is everything the client, CLI and server read at startup.
type Config struct {
	Backend      string `yaml:"backend" envconfig:"BACKEND"`
	Storage      string `yaml:"storage" envconfig:"STORAGE"`
	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `yaml:"otlp_insecure" envconfig:"OTLP_INSECURE"`
	CaptureLines int    `yaml:"capture_lines" envconfig:"CAPTURE_LINES"`
	ServeAddr    string `yaml:"serve_addr" envconfig:"SERVE_ADDR"`
	LogLevel     string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:      "none",
		Storage:      "file://${project}.json",
		CaptureLines: 50,
		ServeAddr:    ":8321",
		LogLevel:     "info",
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME if set,
// otherwise falls back to ~/.config/track/config.yaml.
func Path() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "track", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "track", "config.yaml"), nil
}

// Load resolves the configuration. A missing config file is not an error,
// a malformed one is.
func Load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := envconfig.Process("track", &cfg); err != nil {
		return cfg, fmt.Errorf("config: process environment: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
