package remote

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/logger"
)

const (
	// DefaultReadyTimeout bounds TCP connect plus SSH handshake for a new
	// transport.
	DefaultReadyTimeout = 20 * time.Second

	// DefaultKeepaliveInterval is how often a live transport is pinged.
	DefaultKeepaliveInterval = 10 * time.Second

	// keepaliveRequestType is the global request OpenSSH peers answer; a
	// failed reply means the transport is gone.
	keepaliveRequestType = "keepalive@openssh.com"

	// channelReadBufferSize is the read chunk size for channel output pumps.
	channelReadBufferSize = 32 * 1024
)

// Transport is one authenticated SSH connection, shared by every session
// whose pool key matches it.
type Transport interface {
	// OpenShell opens a new interactive shell channel with the given
	// terminal type and geometry.
	OpenShell(term string, cols, rows int) (Channel, error)

	// Wait blocks until the transport closes, from either side.
	Wait() error

	// Close tears the transport down. Only the pool calls this.
	Close() error
}

// Channel is a single interactive shell multiplexed over a Transport.
type Channel interface {
	// Write sends input bytes to the remote shell.
	Write(p []byte) (int, error)

	// Resize sends a window-change request for the new geometry.
	Resize(cols, rows int) error

	// Stdout and Stderr stream the remote shell's output. Arrival order is
	// preserved per stream.
	Stdout() io.Reader
	Stderr() io.Reader

	// Wait blocks until the channel closes, from any cause.
	Wait() error

	// Close ends the channel without touching the transport.
	Close() error
}

// sshTransport adapts *ssh.Client to Transport and keeps it alive with
// periodic keepalive requests.
type sshTransport struct {
	client *ssh.Client
	done   chan struct{}
}

var _ Transport = (*sshTransport)(nil)

// dialTransport establishes a new SSH transport for params. The ready timeout
// covers the TCP connect and the SSH handshake together. Failures are typed:
// UnreachableHost for dial failures, AuthFailed for rejected authentication,
// TransportError for everything else.
func dialTransport(params ConnectParams, readyTimeout, keepalive time.Duration) (Transport, error) {
	config, err := clientConfig(params)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(params.Host, fmt.Sprintf("%d", params.Port))
	deadline := time.Now().Add(readyTimeout)

	conn, err := net.DialTimeout("tcp", addr, readyTimeout)
	if err != nil {
		return nil, tgerrors.NewUnreachableHostError(fmt.Sprintf("cannot reach %s", addr), err)
	}

	// The handshake inherits what is left of the ready timeout.
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, tgerrors.NewTransportError(fmt.Sprintf("cannot arm handshake deadline for %s", addr), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if isAuthError(err) {
			return nil, tgerrors.NewAuthFailedError(fmt.Sprintf("authentication rejected by %s", addr), err)
		}
		return nil, tgerrors.NewTransportError(fmt.Sprintf("ssh handshake with %s failed", addr), err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = sshConn.Close()
		return nil, tgerrors.NewTransportError(fmt.Sprintf("cannot clear handshake deadline for %s", addr), err)
	}

	t := &sshTransport{
		client: ssh.NewClient(sshConn, chans, reqs),
		done:   make(chan struct{}),
	}
	go t.keepaliveLoop(keepalive)
	return t, nil
}

// clientConfig builds the ssh.ClientConfig for params. Host keys are not
// verified: the gateway has no known-hosts store and targets are
// user-supplied per session.
func clientConfig(params ConnectParams) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if params.PrivateKey != "" {
		var signer ssh.Signer
		var err error
		if params.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(params.PrivateKey), []byte(params.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(params.PrivateKey))
		}
		if err != nil {
			return nil, tgerrors.NewAuthFailedError("cannot parse private key", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if params.Password != "" {
		auth = append(auth, ssh.Password(params.Password))
	}

	return &ssh.ClientConfig{
		User:            params.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
	}, nil
}

// isAuthError reports whether an SSH handshake error was an authentication
// rejection rather than a transport problem.
func isAuthError(err error) bool {
	var authErr *ssh.ServerAuthError
	if errors.As(err, &authErr) {
		return true
	}
	// x/crypto/ssh wraps auth rejections in a plain error with this text.
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// keepaliveLoop pings the peer until the transport closes. A failed ping
// closes the transport so dependents observe their channels closing.
func (t *sshTransport) keepaliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, _, err := t.client.SendRequest(keepaliveRequestType, true, nil); err != nil {
				logger.Debugf("SSH keepalive failed, closing transport: %v", err)
				_ = t.client.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

// OpenShell opens an interactive shell channel on the transport.
func (t *sshTransport) OpenShell(term string, cols, rows int) (Channel, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return nil, err
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term, rows, cols, modes); err != nil {
		_ = session.Close()
		return nil, err
	}
	if err := session.Shell(); err != nil {
		_ = session.Close()
		return nil, err
	}

	return &sshChannel{
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

// Wait blocks until the underlying connection closes.
func (t *sshTransport) Wait() error {
	err := t.client.Wait()
	close(t.done)
	return err
}

// Close closes the underlying connection.
func (t *sshTransport) Close() error {
	return t.client.Close()
}

// sshChannel adapts *ssh.Session to Channel.
type sshChannel struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
}

var _ Channel = (*sshChannel)(nil)

func (c *sshChannel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

func (c *sshChannel) Resize(cols, rows int) error {
	return c.session.WindowChange(rows, cols)
}

func (c *sshChannel) Stdout() io.Reader {
	return c.stdout
}

func (c *sshChannel) Stderr() io.Reader {
	return c.stderr
}

func (c *sshChannel) Wait() error {
	return c.session.Wait()
}

func (c *sshChannel) Close() error {
	return c.session.Close()
}
