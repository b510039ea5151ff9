// Package config loads client configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default locations for credentials kept outside the config file.
const (
	DefaultAccessURLFile  = "~/.restbackup-backup-api-access-url"
	DefaultPassphraseFile = "~/.restbackup-file-encryption-passphrase"
)

// Config holds the complete application configuration.
type Config struct {
	AccessURL     string           `yaml:"access_url" env:"RESTBACKUP_ACCESS_URL"`
	AccessURLFile string           `yaml:"access_url_file" env:"RESTBACKUP_ACCESS_URL_FILE"`
	LogLevel      string           `yaml:"log_level" env:"LOG_LEVEL"`
	UserAgent     string           `yaml:"user_agent" env:"RESTBACKUP_USER_AGENT"`
	Rounds        int              `yaml:"pbkdf2_rounds" env:"RESTBACKUP_PBKDF2_ROUNDS"`
	Passphrase    PassphraseConfig `yaml:"passphrase"`
}

// PassphraseConfig names the encryption passphrase source. A literal value
// takes precedence over a file.
type PassphraseConfig struct {
	Value string `yaml:"value" env:"RESTBACKUP_PASSPHRASE"`
	File  string `yaml:"file" env:"RESTBACKUP_PASSPHRASE_FILE"`
}

// LoadConfig loads configuration from a file and environment variables.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		AccessURLFile: DefaultAccessURLFile,
		LogLevel:      "info",
		UserAgent:     "restbackup-cli/1.0",
		Rounds:        4096,
		Passphrase: PassphraseConfig{
			File: DefaultPassphraseFile,
		},
	}

	// Load from file if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	loadFromEnv(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromEnv loads configuration values from environment variables.
func loadFromEnv(config *Config) {
	if v := os.Getenv("RESTBACKUP_ACCESS_URL"); v != "" {
		config.AccessURL = v
	}
	if v := os.Getenv("RESTBACKUP_ACCESS_URL_FILE"); v != "" {
		config.AccessURLFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("RESTBACKUP_USER_AGENT"); v != "" {
		config.UserAgent = v
	}
	if v := os.Getenv("RESTBACKUP_PBKDF2_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Rounds = n
		}
	}
	if v := os.Getenv("RESTBACKUP_PASSPHRASE"); v != "" {
		config.Passphrase.Value = v
	}
	if v := os.Getenv("RESTBACKUP_PASSPHRASE_FILE"); v != "" {
		config.Passphrase.File = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("pbkdf2_rounds must be positive, got %d", c.Rounds)
	}
	return nil
}

// ResolveAccessURL returns the access URL, reading it from AccessURLFile
// when no literal value is configured.
func (c *Config) ResolveAccessURL() (string, error) {
	if c.AccessURL != "" {
		return c.AccessURL, nil
	}
	data, err := readSecretFile(c.AccessURLFile)
	if err != nil {
		return "", fmt.Errorf("reading access url: %w", err)
	}
	return string(data), nil
}

// Resolve returns the passphrase bytes from the configured source.
func (p *PassphraseConfig) Resolve() ([]byte, error) {
	if p.Value != "" {
		return []byte(p.Value), nil
	}
	data, err := readSecretFile(p.File)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return data, nil
}

// readSecretFile reads path, expanding a leading ~, and strips surrounding
// whitespace so editors that append a newline don't change the secret.
func readSecretFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("no file configured")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(data))), nil
}
