// Package remote is the command execution bridge to the managed host.
//
// Every call opens its own SSH connection, bounded by a connect timeout, and
// runs exactly one command bounded by a command timeout. Nothing here panics or
// returns a fatal error to the caller: connection, authentication and timeout
// faults are folded into Result.Err so callers can show them to the operator.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// Config describes how to reach the managed host.
type Config struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// Executor runs a shell command on the managed host.
type Executor interface {
	Execute(ctx context.Context, command string) Result
}

// Pinger checks that an SSH session to the managed host can be established.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Result is the outcome of one remote command.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Failed reports whether the command produced stderr output or never ran.
func (r Result) Failed() bool {
	return r.Err != nil || r.Stderr != ""
}

// Text returns stdout for a successful command, otherwise a single
// human-readable failure line.
func (r Result) Text() string {
	switch {
	case r.Err != nil:
		return "Could not reach the server or run the command: " + r.Err.Error()
	case r.Stderr != "":
		return "Command error: " + r.Stderr
	}
	return r.Stdout
}

type timeoutKey struct{}

// WithCommandTimeout overrides the command timeout for calls made with ctx.
func WithCommandTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

func commandTimeout(ctx context.Context, def time.Duration) time.Duration {
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok && d > 0 {
		return d
	}
	return def
}

// Client is the SSH implementation of Executor and Pinger.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sshCfg   *ssh.ClientConfig
	warnOnce sync.Once
}

// NewClient creates a client; the private key is loaded lazily on first use so
// a missing key surfaces as a command failure rather than a startup crash.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger.With("component", "remote")}
}

// Addr returns host:port of the managed host.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) clientConfig() (*ssh.ClientConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sshCfg != nil {
		return c.sshCfg, nil
	}

	keyData, err := os.ReadFile(c.cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if c.cfg.KnownHostsPath != "" {
		hostKeys, err = knownhosts.New(c.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
	} else {
		c.warnOnce.Do(func() {
			c.logger.Warn("SSH host key verification disabled", "hint", "set SSH_KNOWN_HOSTS")
		})
	}

	c.sshCfg = &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         c.cfg.ConnectTimeout,
	}
	return c.sshCfg, nil
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	cc, err := c.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := c.Addr()
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	// The handshake is bounded by the same connect deadline.
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cc)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Ping establishes and immediately closes an SSH connection.
func (c *Client) Ping(ctx context.Context) error {
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return client.Close()
}

// Execute runs command on the managed host. Stdout and stderr are trimmed.
func (c *Client) Execute(ctx context.Context, command string) Result {
	timeout := commandTimeout(ctx, c.cfg.CommandTimeout)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout+timeout)
	defer cancel()

	start := time.Now()
	client, err := c.dial(ctx)
	if err != nil {
		c.logger.Error("SSH connection failed", "err", err)
		return Result{Err: err}
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		c.logger.Error("SSH session failed", "err", err)
		return Result{Err: fmt.Errorf("open ssh session: %w", err)}
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runCtx, runCancel := context.WithTimeout(ctx, timeout)
	defer runCancel()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	var runErr error
	select {
	case <-runCtx.Done():
		// Closing the connection unblocks Run; its result is discarded.
		client.Close()
		err := fmt.Errorf("command timed out after %s", timeout)
		if errors.Is(runCtx.Err(), context.Canceled) {
			err = fmt.Errorf("command cancelled: %w", runCtx.Err())
		}
		c.logger.Error("SSH command aborted", "cmd", commandLabel(command), "err", err)
		return Result{Err: err}
	case runErr = <-done:
	}

	res := Result{
		Stdout: strings.TrimSpace(outBuf.String()),
		Stderr: strings.TrimSpace(errBuf.String()),
	}
	if runErr != nil {
		var exitErr *ssh.ExitError
		if !errors.As(runErr, &exitErr) {
			res.Err = fmt.Errorf("run command: %w", runErr)
		}
	}

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		c.logger.Warn("Slow SSH command", "cmd", commandLabel(command), "elapsed", elapsed.Round(time.Millisecond))
	}
	if res.Failed() {
		c.logger.Error("SSH command error", "cmd", commandLabel(command), "stderr", res.Stderr, "err", res.Err)
	}
	return res
}

func commandLabel(cmd string) string {
	if len(cmd) > 80 {
		return cmd[:80] + "..."
	}
	return cmd
}

// ShellQuote wraps s in single quotes, escaping embedded single quotes.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
