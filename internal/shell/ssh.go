package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Compile-time interface check.
var _ Session = (*SSHShell)(nil)

// AuthMethod selects how SSHShell authenticates to the device.
type AuthMethod interface {
	isAuthMethod()
}

// PasswordAuth authenticates with a static password.
type PasswordAuth struct {
	Password string
}

// KeyAuth authenticates with a private key file, optionally encrypted.
type KeyAuth struct {
	PrivateKeyPath string
	Passphrase     string
}

// AgentAuth authenticates through the agent at SSH_AUTH_SOCK.
type AgentAuth struct{}

func (PasswordAuth) isAuthMethod() {}
func (KeyAuth) isAuthMethod()      {}
func (AgentAuth) isAuthMethod()    {}

// SSHConfig describes how to reach a device running an SSH daemon.
type SSHConfig struct {
	Host string
	Port int
	User string
	Auth AuthMethod

	// KnownHostsPath enables host key verification. When empty, host keys
	// are accepted without verification and a warning is logged.
	KnownHostsPath string

	// UseSu wraps every command in `su -c` so that an unprivileged login
	// still reaches root-only nodes.
	UseSu    bool
	SuBinary string

	// CommandTimeout bounds each command. Default: 5 seconds.
	CommandTimeout time.Duration

	// DialTimeout bounds the TCP + handshake phase. Default: 10 seconds.
	DialTimeout time.Duration
}

// SSHShell runs commands on the device over SSH, one session per command.
type SSHShell struct {
	config SSHConfig

	mu     sync.RWMutex
	client *ssh.Client
}

// NewSSHShell validates config and applies defaults. It does not dial; call
// Connect before Run.
func NewSSHShell(config SSHConfig) (*SSHShell, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("shell: ssh host is required")
	}
	if config.User == "" {
		return nil, fmt.Errorf("shell: ssh user is required")
	}
	if config.Auth == nil {
		return nil, fmt.Errorf("shell: ssh authentication method is required")
	}
	if config.Port == 0 {
		config.Port = 22
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 5 * time.Second
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.UseSu && config.SuBinary == "" {
		config.SuBinary = "su"
	}
	return &SSHShell{config: config}, nil
}

// Address returns the host:port the shell dials.
func (s *SSHShell) Address() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Connect dials the device and keeps the client for subsequent commands.
func (s *SSHShell) Connect(ctx context.Context) error {
	clientConfig, err := s.clientConfig()
	if err != nil {
		return fmt.Errorf("shell: build ssh config: %w", err)
	}

	dialer := net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.Address())
	if err != nil {
		return fmt.Errorf("shell: dial %s: %w", s.Address(), err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, s.Address(), clientConfig)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("shell: handshake %s: %w", s.Address(), err)
	}

	s.mu.Lock()
	s.client = ssh.NewClient(c, chans, reqs)
	s.mu.Unlock()
	return nil
}

func (s *SSHShell) clientConfig() (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	switch auth := s.config.Auth.(type) {
	case PasswordAuth:
		methods = append(methods, ssh.Password(auth.Password))
	case KeyAuth:
		key, err := os.ReadFile(auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		var signer ssh.Signer
		if auth.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(auth.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	case AgentAuth:
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
		}
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", socket)
			if err != nil {
				return nil, fmt.Errorf("connect to ssh agent: %w", err)
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	default:
		return nil, fmt.Errorf("unsupported auth method type: %T", auth)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.config.KnownHostsPath != "" {
		cb, err := knownhosts.New(s.config.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKeyCallback = cb
	} else {
		log.Printf("warning: ssh host key for %s is not verified (set shell.ssh.known_hosts_path)", s.Address())
	}

	return &ssh.ClientConfig{
		User:            s.config.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.config.DialTimeout,
	}, nil
}

// wrap applies the su elevation when configured.
func (s *SSHShell) wrap(command string) string {
	if !s.config.UseSu {
		return command
	}
	return s.config.SuBinary + " -c " + Quote(command)
}

// Run executes command in a fresh SSH session. The command is killed only
// when the per-command timeout elapses. Cancelling ctx stops Run from
// waiting, but a command already sent to the device runs on in the
// background until it exits or times out.
func (s *SSHShell) Run(ctx context.Context, command string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return Result{}, ErrShellClosed
	}

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("shell: new ssh session: %w", err)
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(s.wrap(command))
	}()

	timeout := time.NewTimer(s.config.CommandTimeout)

	select {
	case err := <-done:
		timeout.Stop()
		_ = session.Close()
		status := 0
		if err != nil {
			var exitErr *ssh.ExitError
			if !errors.As(err, &exitErr) {
				return Result{}, fmt.Errorf("shell: ssh run: %w", err)
			}
			status = exitErr.ExitStatus()
		}
		return Result{
			ExitStatus: status,
			Stdout:     splitLines(stdout.String()),
			Stderr:     splitLines(stderr.String()),
		}, nil
	case <-timeout.C:
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return Result{}, fmt.Errorf("shell: command timed out after %v", s.config.CommandTimeout)
	case <-ctx.Done():
		go reap(session, done, timeout)
		return Result{}, ctx.Err()
	}
}

// reap closes a session abandoned by its caller once the command exits,
// killing it if the command timeout fires first.
func reap(session *ssh.Session, done <-chan error, timeout *time.Timer) {
	defer session.Close()
	select {
	case <-done:
		timeout.Stop()
	case <-timeout.C:
		_ = session.Signal(ssh.SIGKILL)
	}
}

// Close disconnects from the device. It is safe to call more than once.
func (s *SSHShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// splitLines splits output on newlines, dropping the final empty element
// produced by a trailing newline.
func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}
