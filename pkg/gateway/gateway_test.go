package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/session"
	"github.com/termgate/termgate/pkg/telemetry"
)

// memImages satisfies session.ImageRecorder.
type memImages struct {
	mu     sync.Mutex
	images []string
}

func (m *memImages) Add(_ context.Context, image string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, image)
	return append([]string(nil), m.images...), nil
}

// memParams satisfies remote.ParamsStore.
type memParams struct {
	mu     sync.Mutex
	params map[string]remote.ConnectParams
}

func (m *memParams) Save(_ context.Context, sessionID string, params remote.ConnectParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.params == nil {
		m.params = make(map[string]remote.ConnectParams)
	}
	m.params[sessionID] = params
	return nil
}

func (m *memParams) Get(_ context.Context, sessionID string) (remote.ConnectParams, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.params[sessionID]
	return p, ok, nil
}

type testEnv struct {
	srv   *httptest.Server
	gw    *Gateway
	terms *session.Manager
	ssh   *remote.Registry
}

func newTestEnv(t *testing.T, maxFrame int64) *testEnv {
	t.Helper()
	metrics := telemetry.NewMetrics()
	terms := session.NewManager(&memImages{}, metrics)
	pool := remote.NewPool()
	ssh := remote.NewRegistry(pool, &memParams{}, metrics)
	gw := NewGateway(terms, ssh, metrics, maxFrame)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		srv.Close()
		gw.Shutdown()
		terms.Shutdown()
		ssh.Shutdown()
		pool.Shutdown()
	})
	return &testEnv{srv: srv, gw: gw, terms: terms, ssh: ssh}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame map[string]any

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "expected another frame")
	var f frame
	require.NoError(t, json.Unmarshal(payload, &f))
	return f
}

// readFrameOfType skips frames of other types, which interleave freely
// (output vs lifecycle), until the wanted one arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	for i := 0; i < 100; i++ {
		f := readFrame(t, conn)
		if f["type"] == want {
			return f
		}
	}
	t.Fatalf("no %q frame within 100 frames", want)
	return nil
}

func writeFrame(t *testing.T, conn *websocket.Conn, f map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

func TestGatewayConnectionEstablished(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)

	f := readFrameOfType(t, conn, frameConnectionEstablished)
	ts, ok := f["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)

	require.Eventually(t, func() bool { return env.gw.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGatewayMalformedFrameKeepsConnectionOpen(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := readFrameOfType(t, conn, frameError)
	assert.Contains(t, f["message"], "malformed frame")

	// Still connected: a second bad frame earns a second error frame.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("also not json")))
	readFrameOfType(t, conn, frameError)
}

func TestGatewayOversizedFrameDiscarded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 64)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	big := `{"type":"input","sessionId":"x","data":"` + strings.Repeat("a", 200) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))
	f := readFrameOfType(t, conn, frameError)
	assert.Contains(t, f["message"], "byte limit")

	// The connection survives and small frames still work.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("bad")))
	readFrameOfType(t, conn, frameError)
}

func TestGatewayUnknownFrameTypeIgnored(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{"type": "telepathy"})
	// Unknown kinds produce no response at all; probe with a malformed
	// frame and check the error is the probe's, not the unknown kind's.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("probe")))
	f := readFrameOfType(t, conn, frameError)
	assert.Contains(t, f["message"], "malformed frame")
}

func TestGatewayInputForUnknownSessionIsSilent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{"type": frameInput, "sessionId": "ghost", "data": "ls\n"})
	writeFrame(t, conn, map[string]any{"type": frameResize, "sessionId": "ghost", "cols": 1, "rows": 1})
	writeFrame(t, conn, map[string]any{"type": frameSSHInput, "sessionId": "ghost", "data": "ls\n"})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("probe")))
	f := readFrameOfType(t, conn, frameError)
	assert.Contains(t, f["message"], "malformed frame")
}

func TestGatewayLocalTerminalLifecycle(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{"type": frameCreateTerminal, "cols": 80, "rows": 24, "title": "roundtrip"})
	created := readFrameOfType(t, conn, frameTerminalCreated)
	id, ok := created["sessionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	assert.Equal(t, "roundtrip", created["title"])
	require.Eventually(t, func() bool { return env.terms.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	// The PTY echoes input back, so the marker must come around in a data
	// frame even before the command runs.
	writeFrame(t, conn, map[string]any{"type": frameInput, "sessionId": id, "data": "echo termgate_roundtrip\n"})
	var seen strings.Builder
	for !strings.Contains(seen.String(), "termgate_roundtrip") {
		f := readFrame(t, conn)
		if f["type"] == frameData && f["sessionId"] == id {
			seen.WriteString(f["data"].(string))
		}
	}

	writeFrame(t, conn, map[string]any{"type": frameResize, "sessionId": id, "cols": 100, "rows": 40})

	writeFrame(t, conn, map[string]any{"type": frameCloseTerminal, "sessionId": id})
	closed := readFrameOfType(t, conn, frameTerminalClosed)
	assert.Equal(t, id, closed["sessionId"])
	require.Eventually(t, func() bool { return env.terms.Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	// Double close is a no-op: the probe's error must be the next
	// non-output frame, not a second terminal_closed.
	writeFrame(t, conn, map[string]any{"type": frameCloseTerminal, "sessionId": id})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("probe")))
	for {
		f := readFrame(t, conn)
		if f["type"] == frameData {
			continue
		}
		assert.Equal(t, frameError, f["type"])
		break
	}
}

func TestGatewayDisconnectClosesSessions(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{"type": frameCreateTerminal, "cols": 80, "rows": 24})
	readFrameOfType(t, conn, frameTerminalCreated)
	require.Equal(t, 1, env.terms.Count())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return env.terms.Count() == 0 && env.gw.ClientCount() == 0
	}, 5*time.Second, 10*time.Millisecond, "disconnect must close all owned sessions")
}

func TestGatewayCreateSSHUnreachableHost(t *testing.T) {
	t.Parallel()

	// Grab a port nothing listens on.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{
		"type":     frameCreateSSH,
		"host":     "127.0.0.1",
		"port":     port,
		"username": "nobody",
		"password": "secret",
		"cols":     80,
		"rows":     24,
	})
	f := readFrameOfType(t, conn, frameError)
	message, ok := f["message"].(string)
	require.True(t, ok)
	assert.Contains(t, message, "unreachable_host")
	assert.NotContains(t, message, "secret", "credentials must never appear in frames")
	assert.Equal(t, 0, env.ssh.Count())
}

func TestGatewayCreateSSHMissingCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)

	writeFrame(t, conn, map[string]any{
		"type":     frameCreateSSH,
		"host":     "example.com",
		"username": "nobody",
	})
	f := readFrameOfType(t, conn, frameError)
	message, ok := f["message"].(string)
	require.True(t, ok)
	assert.Contains(t, message, "remote_open_failed")
}

func TestGatewayShutdownDisconnectsClients(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	conn := env.dial(t)
	readFrameOfType(t, conn, frameConnectionEstablished)
	require.Eventually(t, func() bool { return env.gw.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	env.gw.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return env.gw.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}
