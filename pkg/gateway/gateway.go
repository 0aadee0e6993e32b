// Package gateway accepts WebSocket connections and multiplexes terminal
// sessions over each: one Client per connection, dispatching inbound frames
// to the session registries and forwarding their output back out.
package gateway

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/session"
	"github.com/termgate/termgate/pkg/telemetry"
)

// DefaultMaxFrameSize is the inbound frame size limit when none is
// configured. Pasted input is the largest legitimate frame; a megabyte is
// far beyond any paste.
const DefaultMaxFrameSize = 1 << 20

// Gateway owns the connected WebSocket clients and upgrades new connections.
type Gateway struct {
	terms    *session.Manager
	ssh      *remote.Registry
	metrics  *telemetry.Metrics
	maxFrame int64

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// NewGateway wires the gateway to the two registries. maxFrame bounds
// inbound frame sizes; zero means DefaultMaxFrameSize.
func NewGateway(terms *session.Manager, ssh *remote.Registry, metrics *telemetry.Metrics, maxFrame int64) *Gateway {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Gateway{
		terms:    terms,
		ssh:      ssh,
		metrics:  metrics,
		maxFrame: maxFrame,
		upgrader: websocket.Upgrader{
			// The gateway performs no authentication, so an origin
			// check would not gate anything.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the client until its connection
// ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn, g.terms, g.ssh, g.metrics, g.maxFrame)
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = conn.Close()
		return
	}
	g.clients[client] = struct{}{}
	g.mu.Unlock()

	go func() {
		client.run()
		g.mu.Lock()
		delete(g.clients, client)
		g.mu.Unlock()
	}()
}

// ClientCount reports the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown disconnects every client, which closes all their sessions. New
// connections are refused afterwards.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.teardown()
	}
}
