package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// Credential is a resolved username/password or key pair for a device.
type Credential struct {
	Username string
	Password string
	KeyFile  string
}

// Credentials resolves a device's credentials-ref. It is an external
// collaborator; StaticCredentials serves standalone and test setups.
type Credentials interface {
	Resolve(ref string) (Credential, error)
}

// StaticCredentials is a fixed ref -> credential map.
type StaticCredentials map[string]Credential

func (s StaticCredentials) Resolve(ref string) (Credential, error) {
	c, ok := s[ref]
	if !ok {
		return Credential{}, errors.NewConfigError("credentials", ref, fmt.Errorf("unknown credentials ref"))
	}
	return c, nil
}

// Session is one short-lived connection to one device. Exactly one active
// session per device at a time; closed deterministically after its command
// batch finishes (lazy-connect, eager-disconnect).
type Session struct {
	Device   *domain.Device
	Mode     domain.SessionMode
	OpenedAt time.Time

	client  *ssh.Client
	bastion *ssh.Client
}

// Manager establishes one device connection at a time, optionally tunneled
// through a bastion host, and falls back to a deterministic synthetic
// session when allowed and the real one is unreachable.
type Manager struct {
	cfg         *config.Config
	credentials Credentials
	logger      *logger.Logger
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, creds Credentials, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		credentials: creds,
		logger:      log.WithField("component", "session-manager"),
	}
}

// TimeoutFor returns the class-specific command timeout ceiling.
func (m *Manager) TimeoutFor(class domain.CommandClass) time.Duration {
	switch class {
	case domain.ClassDiagnostic:
		return m.cfg.Session.DiagnosticTimeout
	case domain.ClassConfig:
		return m.cfg.Session.ConfigTimeout
	default:
		return m.cfg.Session.StatusTimeout
	}
}

// Open establishes a session to the device. With a jumphost enabled, the
// tunnel and the device hop both authenticate with the jumphost's own
// credentials; incomplete jumphost credentials fail fast with a
// configuration error instead of guessing per-device ones. When the real
// connection cannot be established and synthetic sessions are allowed, the
// returned session carries ModeSynthetic so no consumer can mistake it for
// live data.
func (m *Manager) Open(ctx context.Context, device *domain.Device) (*Session, error) {
	log := m.logger.WithField("device", device.Name)

	sess, err := m.openReal(ctx, device)
	if err == nil {
		log.Debug("session opened", "mode", sess.Mode, "address", device.Address())
		return sess, nil
	}
	if errors.IsConfiguration(err) {
		return nil, err
	}

	if m.cfg.Session.AllowSynthetic {
		log.Warn("real session unavailable, opening synthetic session", "error", err)
		return &Session{
			Device:   device,
			Mode:     domain.ModeSynthetic,
			OpenedAt: time.Now(),
		}, nil
	}

	return nil, errors.NewConnectError(device.Name, 1, err)
}

func (m *Manager) openReal(ctx context.Context, device *domain.Device) (*Session, error) {
	jump := m.cfg.Jumphost

	if jump.Enabled {
		if jump.Host == "" || jump.Username == "" || (jump.Password == "" && jump.KeyFile == "") {
			return nil, errors.NewConfigError("jumphost", "credentials",
				fmt.Errorf("jumphost enabled but credentials are incomplete"))
		}

		auth, err := authMethods(Credential{Username: jump.Username, Password: jump.Password, KeyFile: jump.KeyFile})
		if err != nil {
			return nil, errors.NewConfigError("jumphost", "keyFile", err)
		}
		clientCfg := &ssh.ClientConfig{
			User:            jump.Username,
			Auth:            auth,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         m.cfg.Session.ConnectTimeout,
		}

		bastionAddr := fmt.Sprintf("%s:%d", jump.Host, jump.Port)
		bastion, err := ssh.Dial("tcp", bastionAddr, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("dial jumphost %s: %w", bastionAddr, err)
		}

		conn, err := dialThrough(ctx, bastion, device.Address(), m.cfg.Session.ConnectTimeout)
		if err != nil {
			bastion.Close()
			return nil, fmt.Errorf("tunnel to %s: %w", device.Address(), err)
		}

		ncc, chans, reqs, err := ssh.NewClientConn(conn, device.Address(), clientCfg)
		if err != nil {
			conn.Close()
			bastion.Close()
			return nil, fmt.Errorf("handshake %s: %w", device.Address(), err)
		}

		return &Session{
			Device:   device,
			Mode:     domain.ModeReal,
			OpenedAt: time.Now(),
			client:   ssh.NewClient(ncc, chans, reqs),
			bastion:  bastion,
		}, nil
	}

	cred, err := m.credentials.Resolve(device.CredentialsRef)
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(cred)
	if err != nil {
		return nil, errors.NewConfigError("credentials", device.CredentialsRef, err)
	}
	clientCfg := &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         m.cfg.Session.ConnectTimeout,
	}

	client, err := ssh.Dial("tcp", device.Address(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", device.Address(), err)
	}

	return &Session{
		Device:   device,
		Mode:     domain.ModeReal,
		OpenedAt: time.Now(),
		client:   client,
	}, nil
}

// dialThrough opens a TCP connection to addr via the bastion, bounded by
// the connect timeout since ssh.Client.Dial has no deadline of its own.
func dialThrough(ctx context.Context, bastion *ssh.Client, addr string, timeout time.Duration) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := bastion.Dial("tcp", addr)
		ch <- dialResult{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("connect timeout after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func authMethods(cred Credential) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cred.KeyFile != "" {
		key, err := os.ReadFile(cred.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cred.Password != "" {
		methods = append(methods, ssh.Password(cred.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable auth method")
	}
	return methods, nil
}

// Run executes one command on the session with the given timeout ceiling.
// Exceeding the ceiling yields a timeout command failure, never a hang.
// In-flight commands are not killed on context cancel; the caller stops
// issuing new ones instead.
func (m *Manager) Run(ctx context.Context, sess *Session, command string, timeout time.Duration) (string, error) {
	if sess.Mode == domain.ModeSynthetic {
		return RenderSynthetic(sess.Device, command), nil
	}

	sshSess, err := sess.client.NewSession()
	if err != nil {
		return "", errors.NewCommandError(sess.Device.Name, command, errors.CommandDisconnected, err)
	}
	defer sshSess.Close()

	type runResult struct {
		out []byte
		err error
	}
	ch := make(chan runResult, 1)
	go func() {
		out, err := sshSess.CombinedOutput(command)
		ch <- runResult{out, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			kind := errors.CommandProtocol
			if _, ok := r.err.(*ssh.ExitMissingError); ok {
				kind = errors.CommandDisconnected
			}
			return string(r.out), errors.NewCommandError(sess.Device.Name, command, kind, r.err)
		}
		return string(r.out), nil
	case <-time.After(timeout):
		return "", errors.NewCommandError(sess.Device.Name, command, errors.CommandTimeout,
			fmt.Errorf("no response within %s", timeout))
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close tears the session down. Safe to call on synthetic sessions.
func (m *Manager) Close(sess *Session) {
	if sess == nil {
		return
	}
	if sess.client != nil {
		_ = sess.client.Close()
	}
	if sess.bastion != nil {
		_ = sess.bastion.Close()
	}
}
