package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/pkg/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8443", cfg.GetServerAddress())
	assert.Equal(t, 3, cfg.Session.ConnectRetries)
	assert.Equal(t, 2*time.Second, cfg.Session.RetryBackoff)
	assert.False(t, cfg.Session.AllowSynthetic, "synthetic sessions are opt-in")
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
session:
  allowSynthetic: true
  connectTimeout: 5s
executor:
  defaultBatchSize: 20
`), 0644))

	cfg, loadedFrom, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, loadedFrom)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Session.AllowSynthetic)
	assert.Equal(t, 5*time.Second, cfg.Session.ConnectTimeout)
	assert.Equal(t, 20, cfg.Executor.DefaultBatchSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, 60, cfg.Executor.DefaultDevicesPerHour)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestValidateJumphost(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing host", func(c *Config) {
			c.Jumphost.Enabled = true
			c.Jumphost.Username = "ops"
			c.Jumphost.Password = "pw"
		}, "host"},
		{"missing username", func(c *Config) {
			c.Jumphost.Enabled = true
			c.Jumphost.Host = "bastion"
			c.Jumphost.Password = "pw"
		}, "username"},
		{"missing credentials", func(c *Config) {
			c.Jumphost.Enabled = true
			c.Jumphost.Host = "bastion"
			c.Jumphost.Username = "ops"
		}, "credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err, "an enabled jumphost with incomplete credentials must fail fast")

			var ce *errors.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "jumphost", ce.Component)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Executor.DefaultBatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Executor.DefaultDevicesPerHour = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.OutputDir = ""
	assert.Error(t, cfg.Validate())
}
