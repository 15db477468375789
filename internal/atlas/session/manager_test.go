package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

func managerConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.ConnectTimeout = 200 * time.Millisecond
	return cfg
}

func TestTimeoutFor(t *testing.T) {
	cfg := managerConfig()
	cfg.Session.StatusTimeout = 30 * time.Second
	cfg.Session.DiagnosticTimeout = 2 * time.Minute
	cfg.Session.ConfigTimeout = 20 * time.Second

	m := NewManager(cfg, StaticCredentials{}, logger.New())
	assert.Equal(t, 30*time.Second, m.TimeoutFor(domain.ClassStatus))
	assert.Equal(t, 2*time.Minute, m.TimeoutFor(domain.ClassDiagnostic))
	assert.Equal(t, 20*time.Second, m.TimeoutFor(domain.ClassConfig))
}

func TestOpenFallsBackToSynthetic(t *testing.T) {
	cfg := managerConfig()
	cfg.Session.AllowSynthetic = true

	m := NewManager(cfg, StaticCredentials{"lab": {Username: "ops", Password: "pw"}}, logger.New())
	device := &domain.Device{ID: "r1", Name: "r1", Host: "127.0.0.1", Port: 1, CredentialsRef: "lab"}

	sess, err := m.Open(context.Background(), device)
	require.NoError(t, err)
	defer m.Close(sess)

	assert.Equal(t, domain.ModeSynthetic, sess.Mode, "unreachable device with synthetic allowed falls back")

	out, err := m.Run(context.Background(), sess, "show ip ospf neighbor", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestOpenWithoutSyntheticFails(t *testing.T) {
	cfg := managerConfig()
	cfg.Session.AllowSynthetic = false

	m := NewManager(cfg, StaticCredentials{"lab": {Username: "ops", Password: "pw"}}, logger.New())
	device := &domain.Device{ID: "r1", Name: "r1", Host: "127.0.0.1", Port: 1, CredentialsRef: "lab"}

	_, err := m.Open(context.Background(), device)
	require.Error(t, err)
	assert.True(t, errors.IsConnect(err))
	assert.True(t, errors.IsRetryable(err), "connection failures are the retryable kind")
}

func TestOpenIncompleteJumphostFailsFast(t *testing.T) {
	cfg := managerConfig()
	cfg.Session.AllowSynthetic = true // must NOT mask a config error
	cfg.Jumphost.Enabled = true
	cfg.Jumphost.Host = "bastion.example.net"
	cfg.Jumphost.Username = ""

	m := NewManager(cfg, StaticCredentials{}, logger.New())
	device := &domain.Device{ID: "r1", Name: "r1", Host: "10.0.0.1"}

	_, err := m.Open(context.Background(), device)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err), "incomplete jumphost credentials are fatal, never retried or faked")
	assert.False(t, errors.IsRetryable(err))
}

func TestOpenUnknownCredentialsRef(t *testing.T) {
	cfg := managerConfig()

	m := NewManager(cfg, StaticCredentials{}, logger.New())
	device := &domain.Device{ID: "r1", Name: "r1", Host: "10.0.0.1", CredentialsRef: "missing"}

	_, err := m.Open(context.Background(), device)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
