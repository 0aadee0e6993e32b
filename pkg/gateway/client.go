package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/session"
	"github.com/termgate/termgate/pkg/telemetry"
)

const (
	// outQueueSize is the number of marshaled frames buffered between the
	// producers and the connection writer.
	outQueueSize = 256

	// writeWait bounds a single frame write to the connection.
	writeWait = 10 * time.Second

	// pongWait is how long the connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one connected WebSocket: it parses the inbound frame stream,
// dispatches to the registries, and is the owner handle the registries
// notify with output and lifecycle events.
type Client struct {
	conn    *websocket.Conn
	terms   *session.Manager
	ssh     *remote.Registry
	metrics *telemetry.Metrics

	// maxFrame is the inbound frame size limit. Oversized frames are
	// answered with an error frame and discarded; the connection stays
	// open, so this is checked manually instead of via SetReadLimit.
	maxFrame int64

	out chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, terms *session.Manager, ssh *remote.Registry, metrics *telemetry.Metrics, maxFrame int64) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		terms:    terms,
		ssh:      ssh,
		metrics:  metrics,
		maxFrame: maxFrame,
		out:      make(chan []byte, outQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		closed:   make(chan struct{}),
	}
}

// run drives the connection until it ends, then tears down every session the
// client owns.
func (c *Client) run() {
	c.metrics.ClientConnected()
	logger.Infow("Client connected", "remote_addr", c.conn.RemoteAddr().String())

	go c.writePump()
	c.send(connectionEstablishedFrame{
		Type:      frameConnectionEstablished,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	c.readPump()
	c.teardown()
}

// readPump reads frames until the connection errors and dispatches each one.
// Malformed and oversized frames earn an error frame, never a disconnect.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			logger.Debugf("Ignoring non-text frame from %s", c.conn.RemoteAddr())
			continue
		}
		if c.maxFrame > 0 && int64(len(payload)) > c.maxFrame {
			c.sendError(fmt.Sprintf("frame of %d bytes exceeds the %d byte limit", len(payload), c.maxFrame))
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.sendError("malformed frame: " + err.Error())
			continue
		}
		c.dispatch(frame)
	}
}

// writePump is the single goroutine allowed to write to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case buf := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.teardown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// dispatch routes one inbound frame. Input and resize run inline: they are
// cheap writes and their receipt order matters. Anything that can block goes
// to its own goroutine so one slow operation cannot stall other sessions.
func (c *Client) dispatch(f clientFrame) {
	switch f.Type {
	case frameInput:
		c.terms.Input(f.SessionID, []byte(f.Data))
	case frameResize:
		c.terms.Resize(f.SessionID, f.Cols, f.Rows)
	case frameSSHInput:
		c.ssh.Input(f.SessionID, []byte(f.Data))
	case frameSSHResize:
		c.ssh.Resize(f.SessionID, f.Cols, f.Rows)
	case frameCloseTerminal:
		go c.terms.Close(f.SessionID)
	case frameCloseSSH:
		go c.ssh.Close(f.SessionID)
	case frameCreateTerminal:
		go c.createTerminal(f)
	case frameCreateSandbox:
		go c.createSandbox(f)
	case frameCloneTerminal:
		go c.cloneTerminal(f)
	case frameCreateSSH:
		go c.createSSH(f)
	case frameDuplicateSSH:
		go c.duplicateSSH(f)
	case frameReconnectSSH:
		go c.reconnectSSH(f)
	default:
		logger.Debugf("Ignoring unknown frame type %q", f.Type)
	}
}

func (c *Client) createTerminal(f clientFrame) {
	res, err := c.terms.CreateLocal(c.ctx, c, session.LocalOptions{
		Cols:        f.Cols,
		Rows:        f.Rows,
		Title:       f.Title,
		KubeContext: f.KubeContext,
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(res.SessionID, false) {
		return
	}
	c.send(terminalCreatedFrame{Type: frameTerminalCreated, SessionID: res.SessionID, Title: res.Title})
}

func (c *Client) createSandbox(f clientFrame) {
	res, err := c.terms.CreateSandbox(c.ctx, c, session.SandboxOptions{
		Cols:  f.Cols,
		Rows:  f.Rows,
		Image: f.Image,
		Title: f.Title,
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(res.SessionID, false) {
		return
	}
	c.send(terminalCreatedFrame{Type: frameTerminalCreated, SessionID: res.SessionID, Title: res.Title, IsSandbox: true})
}

// cloneTerminal duplicates a session of any kind: process-backed sessions in
// the session manager, SSH sessions in the remote registry. The historical
// clone type variants all behave the same and the field is only echoed back.
func (c *Client) cloneTerminal(f clientFrame) {
	res, err := c.terms.Duplicate(c.ctx, c, f.OriginalSessionID)
	if err == nil {
		if c.reapIfDisconnected(res.SessionID, false) {
			return
		}
		if f.Cols > 0 && f.Rows > 0 {
			c.terms.Resize(res.SessionID, f.Cols, f.Rows)
		}
		c.send(terminalCreatedFrame{
			Type:      frameTerminalCreated,
			SessionID: res.SessionID,
			Title:     res.Title,
			Cloned:    true,
			IsSandbox: res.Kind == session.KindSandbox,
			CloneType: f.CloneType,
		})
		return
	}
	if !tgerrors.IsUnknownSession(err) {
		c.sendError(err.Error())
		return
	}

	sres, err := c.ssh.Duplicate(c.ctx, c, f.OriginalSessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(sres.SessionID, true) {
		return
	}
	if f.Cols > 0 && f.Rows > 0 {
		c.ssh.Resize(sres.SessionID, f.Cols, f.Rows)
	}
	c.send(sshCreatedFrame{Type: frameSSHCreated, SessionID: sres.SessionID, Title: sres.Title, Params: sres.Params, Cloned: true})
}

func (c *Client) createSSH(f clientFrame) {
	res, err := c.ssh.Create(c.ctx, c, remote.ConnectParams{
		Host:       f.Host,
		Port:       f.Port,
		Username:   f.Username,
		Password:   f.Password,
		PrivateKey: f.PrivateKey,
		Passphrase: f.Passphrase,
		Term:       f.Term,
		Cols:       f.Cols,
		Rows:       f.Rows,
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(res.SessionID, true) {
		return
	}
	c.send(sshCreatedFrame{Type: frameSSHCreated, SessionID: res.SessionID, Title: res.Title, Params: res.Params})
}

func (c *Client) duplicateSSH(f clientFrame) {
	res, err := c.ssh.Duplicate(c.ctx, c, f.SessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(res.SessionID, true) {
		return
	}
	c.send(sshCreatedFrame{Type: frameSSHCreated, SessionID: res.SessionID, Title: res.Title, Params: res.Params, Duplicated: true})
}

func (c *Client) reconnectSSH(f clientFrame) {
	res, err := c.ssh.Reconnect(c.ctx, c, f.SessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if c.reapIfDisconnected(res.SessionID, true) {
		return
	}
	c.send(sshCreatedFrame{Type: frameSSHCreated, SessionID: res.SessionID, Title: res.Title, Params: res.Params, Reconnected: true})
}

// reapIfDisconnected closes a session that finished creating after the
// client was already gone. CloseAllForClient cannot see a session that
// registers later, so the create path sweeps up after itself.
func (c *Client) reapIfDisconnected(sessionID string, isSSH bool) bool {
	if !c.isClosed() {
		return false
	}
	if isSSH {
		c.ssh.Close(sessionID)
	} else {
		c.terms.Close(sessionID)
	}
	return true
}

// Data implements session.Client.
func (c *Client) Data(sessionID string, data []byte) {
	c.sendOutput(dataFrame{Type: frameData, SessionID: sessionID, Data: string(data)})
}

// Exit implements session.Client.
func (c *Client) Exit(sessionID string, code int) {
	c.send(exitFrame{Type: frameTerminalExit, SessionID: sessionID, Code: code})
}

// Closed implements session.Client.
func (c *Client) Closed(sessionID string) {
	c.send(closedFrame{Type: frameTerminalClosed, SessionID: sessionID})
}

// SSHData implements remote.Client.
func (c *Client) SSHData(sessionID string, data []byte) {
	c.sendOutput(dataFrame{Type: frameSSHData, SessionID: sessionID, Data: string(data)})
}

// SSHClosed implements remote.Client.
func (c *Client) SSHClosed(sessionID string) {
	c.send(closedFrame{Type: frameSSHClosed, SessionID: sessionID})
}

func (c *Client) sendError(message string) {
	logger.Debugf("Sending error frame: %s", message)
	c.send(errorFrame{Type: frameError, Message: message})
}

// send queues a control frame, waiting for queue space. A closed connection
// turns the send into a no-op.
func (c *Client) send(frame any) {
	buf, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("Failed to marshal frame: %v", err)
		return
	}
	select {
	case c.out <- buf:
	case <-c.closed:
	}
}

// sendOutput queues an output frame. When the client cannot keep up the
// frame is dropped; delivered frames stay in per-session order because every
// producer is a single goroutine feeding this one queue.
func (c *Client) sendOutput(frame any) {
	buf, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("Failed to marshal frame: %v", err)
		return
	}
	select {
	case c.out <- buf:
	case <-c.closed:
	default:
		logger.Debugf("Dropping output frame for slow client %s", c.conn.RemoteAddr())
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// teardown closes the connection and every session this client owns.
// Notifications fired by the closes become no-ops because the closed channel
// is already down.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		_ = c.conn.Close()

		c.terms.CloseAllForClient(c)
		c.ssh.CloseAllForClient(c)

		c.metrics.ClientDisconnected()
		logger.Infow("Client disconnected", "remote_addr", c.conn.RemoteAddr().String())
	})
}
