package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"

	"fdep/pkg/cmdutil"
)

// SSHConfig configures the SSH transport.
type SSHConfig struct {
	User       string
	KeyFile    string
	KnownHosts string
	UseAgent   bool
	Timeout    time.Duration
}

// SSH runs commands over SSH, reusing one connection per host.
type SSH struct {
	cfg    SSHConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*ssh.Client
	agent   net.Conn
}

// NewSSH creates an SSH transport. Connections are opened lazily.
func NewSSH(cfg SSHConfig, logger *slog.Logger) *SSH {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSH{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*ssh.Client),
	}
}

// cancelGrace bounds how long Exec waits for a killed session to finish
// copying its output.
const cancelGrace = 5 * time.Second

func (s *SSH) clientConfig(addr string) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if s.cfg.KeyFile != "" {
		key, err := os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		switch {
		case errors.As(err, &missing):
			s.logger.Warn("key file is passphrase protected, relying on ssh-agent", "key", s.cfg.KeyFile)
		case err != nil:
			return nil, fmt.Errorf("failed to parse key file %s: %w", s.cfg.KeyFile, err)
		default:
			auth = append(auth, ssh.PublicKeys(signer))
		}
	}

	if s.cfg.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" && s.agent == nil {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				s.logger.Warn("ssh-agent unavailable", "error", err)
			} else {
				s.agent = conn
			}
		}
		if s.agent != nil {
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(s.agent).Signers))
		}
	}

	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh authentication available: set key_filename or run ssh-agent")
	}

	hostKeys, err := knownhosts.NewDB(s.cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", s.cfg.KnownHosts, err)
	}

	// Only negotiate key types known_hosts holds for this host, otherwise a
	// server offering several keys may present one that is not listed.
	return &ssh.ClientConfig{
		User:              s.cfg.User,
		Auth:              auth,
		HostKeyCallback:   hostKeys.HostKeyCallback(),
		HostKeyAlgorithms: hostKeys.HostKeyAlgorithms(addr),
		Timeout:           s.cfg.Timeout,
	}, nil
}

func (s *SSH) client(ctx context.Context, host Host) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := host.Address()
	if c, ok := s.clients[addr]; ok {
		return c, nil
	}

	cfg, err := s.clientConfig(addr)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	client := ssh.NewClient(c, chans, reqs)
	s.clients[addr] = client
	s.logger.Info("ssh connected", "host", addr, "user", s.cfg.User)
	return client, nil
}

// Exec runs cmd on host through a login bash shell.
func (s *SSH) Exec(ctx context.Context, host Host, cmd Command) (*cmdutil.Result, error) {
	client, err := s.client(ctx, host)
	if err != nil {
		return &cmdutil.Result{ExitCode: -1}, err
	}

	session, err := client.NewSession()
	if err != nil {
		return &cmdutil.Result{ExitCode: -1}, fmt.Errorf("failed to open session on %s: %w", host, err)
	}
	defer session.Close()

	// stdout and stderr are copied by separate goroutines
	var buf bytes.Buffer
	var out io.Writer = &buf
	if cmd.Stream != nil {
		out = io.MultiWriter(&buf, cmd.Stream)
	}
	shared := &lockedWriter{w: out}
	session.Stdout = shared
	session.Stderr = shared

	if cmd.Interactive {
		restore, err := s.attachTerminal(session, cmd.Stdin)
		if err != nil {
			return &cmdutil.Result{ExitCode: -1}, err
		}
		defer restore()
	} else if cmd.Stdin != nil {
		session.Stdin = cmd.Stdin
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- session.Run(cmd.Wrapped()) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		select {
		case <-done:
		case <-time.After(cancelGrace):
			s.logger.Warn("remote output still being copied after cancel", "host", host.String())
		}
		err = ctx.Err()
	}

	result := &cmdutil.Result{
		Output:   shared.snapshot(&buf),
		Duration: time.Since(start),
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
		return result, fmt.Errorf("[%s] command exited with code %d: %s", host, result.ExitCode, cmd.Line)
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("[%s] command failed: %w", host, err)
	}
}

// lockedWriter serializes writes from the stdout and stderr copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// snapshot copies buf while holding the write lock.
func (l *lockedWriter) snapshot(buf *bytes.Buffer) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.Clone(buf.Bytes())
}

// attachTerminal requests a PTY and puts a local terminal stdin into raw
// mode. The returned func restores the terminal.
func (s *SSH) attachTerminal(session *ssh.Session, stdin io.Reader) (func(), error) {
	if stdin == nil {
		stdin = os.Stdin
	}
	session.Stdin = stdin

	width, height := 80, 24
	restore := func() {}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil {
			width, height = w, h
		}
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return nil, fmt.Errorf("failed to set terminal raw mode: %w", err)
		}
		restore = func() { _ = term.Restore(int(f.Fd()), state) }
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	termType := os.Getenv("TERM")
	if termType == "" {
		termType = "xterm-256color"
	}
	if err := session.RequestPty(termType, height, width, modes); err != nil {
		restore()
		return nil, fmt.Errorf("failed to allocate pty: %w", err)
	}
	return restore, nil
}

// Close closes every open connection.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for addr, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		}
		delete(s.clients, addr)
	}
	if s.agent != nil {
		s.agent.Close()
		s.agent = nil
	}
	return errors.Join(errs...)
}
