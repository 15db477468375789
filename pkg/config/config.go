package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ospfatlas/pkg/errors"
)

// Config holds the complete application configuration
type Config struct {
	Version  string         `yaml:"version" json:"version"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Jumphost JumphostConfig `yaml:"jumphost" json:"jumphost"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Executor ExecutorConfig `yaml:"executor" json:"executor"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds the HTTP API server configuration
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	Port            int           `yaml:"port" json:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// JumphostConfig holds the bastion host configuration. When Enabled is true
// all device sessions are tunneled through the jumphost and authenticate
// with the jumphost's own credentials; per-device credentials are never used
// as a silent fallback.
type JumphostConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	KeyFile  string `yaml:"keyFile" json:"keyFile"`
}

// SessionConfig holds device session behavior
type SessionConfig struct {
	ConnectTimeout    time.Duration `yaml:"connectTimeout" json:"connectTimeout"`
	StatusTimeout     time.Duration `yaml:"statusTimeout" json:"statusTimeout"`
	DiagnosticTimeout time.Duration `yaml:"diagnosticTimeout" json:"diagnosticTimeout"`
	ConfigTimeout     time.Duration `yaml:"configTimeout" json:"configTimeout"`
	ConnectRetries    int           `yaml:"connectRetries" json:"connectRetries"`
	RetryBackoff      time.Duration `yaml:"retryBackoff" json:"retryBackoff"`
	AllowSynthetic    bool          `yaml:"allowSynthetic" json:"allowSynthetic"`
}

// ExecutorConfig holds batch execution defaults and ceilings
type ExecutorConfig struct {
	DefaultBatchSize      int `yaml:"defaultBatchSize" json:"defaultBatchSize"`
	DefaultDevicesPerHour int `yaml:"defaultDevicesPerHour" json:"defaultDevicesPerHour"`
	MaxParallelism        int `yaml:"maxParallelism" json:"maxParallelism"`
}

// StorageConfig holds filesystem paths for the bounded-context stores
type StorageConfig struct {
	OutputDir     string `yaml:"outputDir" json:"outputDir"`
	InventoryFile string `yaml:"inventoryFile" json:"inventoryFile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Output string `yaml:"output" json:"output"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            8443,
			ShutdownTimeout: 30 * time.Second,
		},
		Jumphost: JumphostConfig{
			Enabled: false,
			Port:    22,
		},
		Session: SessionConfig{
			ConnectTimeout:    15 * time.Second,
			StatusTimeout:     30 * time.Second,
			DiagnosticTimeout: 2 * time.Minute,
			ConfigTimeout:     20 * time.Second,
			ConnectRetries:    3,
			RetryBackoff:      2 * time.Second,
			AllowSynthetic:    false,
		},
		Executor: ExecutorConfig{
			DefaultBatchSize:      5,
			DefaultDevicesPerHour: 60,
			MaxParallelism:        10,
		},
		Storage: StorageConfig{
			OutputDir: "/var/lib/ospfatlas/outputs",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Output: "stdout",
		},
	}
}

// Config file search order: explicit path, OSPFATLAS_CONFIG env var, then
// the default locations.
var defaultConfigPaths = []string{
	"./ospfatlas-config.yml",
	"/etc/ospfatlas/config.yml",
}

// LoadConfig loads configuration from the first available source and merges
// it over the defaults. Returns the effective config and the path it was
// loaded from ("" when running on pure defaults).
func LoadConfig(explicitPath string) (*Config, string, error) {
	cfg := DefaultConfig()

	path := explicitPath
	if path == "" {
		path = os.Getenv("OSPFATLAS_CONFIG")
	}
	if path == "" {
		for _, candidate := range defaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.NewConfigError("file", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", errors.NewConfigError("file", path, fmt.Errorf("parse yaml: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// Validate checks the configuration for contradictions. A jumphost that is
// enabled but missing credentials fails fast here, before any device dial.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.NewConfigError("server", "port", fmt.Errorf("invalid port %d", c.Server.Port))
	}

	if c.Jumphost.Enabled {
		if c.Jumphost.Host == "" {
			return errors.NewConfigError("jumphost", "host", fmt.Errorf("jumphost enabled but host is empty"))
		}
		if c.Jumphost.Username == "" {
			return errors.NewConfigError("jumphost", "username", fmt.Errorf("jumphost enabled but username is empty"))
		}
		if c.Jumphost.Password == "" && c.Jumphost.KeyFile == "" {
			return errors.NewConfigError("jumphost", "credentials", fmt.Errorf("jumphost enabled but neither password nor keyFile is set"))
		}
		if c.Jumphost.Port <= 0 || c.Jumphost.Port > 65535 {
			return errors.NewConfigError("jumphost", "port", fmt.Errorf("invalid port %d", c.Jumphost.Port))
		}
	}

	if c.Executor.DefaultBatchSize <= 0 {
		return errors.NewConfigError("executor", "defaultBatchSize", fmt.Errorf("must be positive"))
	}
	if c.Executor.DefaultDevicesPerHour <= 0 {
		return errors.NewConfigError("executor", "defaultDevicesPerHour", fmt.Errorf("must be positive"))
	}
	if c.Executor.MaxParallelism <= 0 {
		return errors.NewConfigError("executor", "maxParallelism", fmt.Errorf("must be positive"))
	}

	if c.Session.ConnectRetries < 0 {
		return errors.NewConfigError("session", "connectRetries", fmt.Errorf("must not be negative"))
	}

	if c.Storage.OutputDir == "" {
		return errors.NewConfigError("storage", "outputDir", fmt.Errorf("outputDir is required"))
	}

	return nil
}

// GetServerAddress returns the full listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
