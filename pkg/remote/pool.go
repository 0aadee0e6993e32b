package remote

import (
	"context"
	"sync"
	"time"

	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/logger"
)

// DefaultIdleTimeout is how long an unreferenced transport is kept before the
// pool closes it.
const DefaultIdleTimeout = 5 * time.Minute

// dialFunc establishes a new transport. Tests substitute a stub.
type dialFunc func(params ConnectParams, readyTimeout, keepalive time.Duration) (Transport, error)

// poolEntry is one pooled transport and its bookkeeping. ready is closed once
// the dial finished, successfully or not; dialErr is only valid after that.
type poolEntry struct {
	key       PoolKey
	transport Transport
	refs      int
	idleTimer *time.Timer
	ready     chan struct{}
	dialErr   error
}

// Pool caches live SSH transports keyed by (host, port, username) and keeps
// each alive while at least one session references it. A transport whose
// reference count drops to zero survives for the idle timeout, then closes.
type Pool struct {
	mu      sync.Mutex
	entries map[PoolKey]*poolEntry
	closed  bool

	idleTimeout  time.Duration
	readyTimeout time.Duration
	keepalive    time.Duration
	dial         dialFunc
}

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

// WithIdleTimeout overrides how long an unreferenced transport is retained.
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithReadyTimeout overrides the bound on TCP connect plus SSH handshake.
func WithReadyTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.readyTimeout = d
		}
	}
}

// WithKeepaliveInterval overrides the transport keepalive ping interval.
func WithKeepaliveInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.keepalive = d
		}
	}
}

// withDialFunc substitutes the transport dialer. Test hook.
func withDialFunc(dial dialFunc) PoolOption {
	return func(p *Pool) {
		p.dial = dial
	}
}

// NewPool creates an empty transport pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		entries:      make(map[PoolKey]*poolEntry),
		idleTimeout:  DefaultIdleTimeout,
		readyTimeout: DefaultReadyTimeout,
		keepalive:    DefaultKeepaliveInterval,
		dial:         dialTransport,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a live transport for params, reusing a pooled one when its
// key matches and dialing otherwise. The caller owns one reference and must
// Release it. Concurrent acquires for the same key share a single dial.
func (p *Pool) Acquire(ctx context.Context, params ConnectParams) (Transport, error) {
	key := params.Key()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, tgerrors.NewTransportError("transport pool is shut down", nil)
		}

		e, ok := p.entries[key]
		if !ok {
			// First acquirer dials; the pending entry carries its reference.
			e = &poolEntry{key: key, refs: 1, ready: make(chan struct{})}
			p.entries[key] = e
			p.mu.Unlock()
			return p.establish(e, params)
		}

		select {
		case <-e.ready:
			if e.dialErr == nil && p.entries[key] == e {
				if e.idleTimer != nil {
					e.idleTimer.Stop()
					e.idleTimer = nil
				}
				e.refs++
				t := e.transport
				p.mu.Unlock()
				return t, nil
			}
			// The dial failed or the entry was removed after a transport
			// close; retry from scratch.
			p.mu.Unlock()
		default:
			// A dial for this key is in flight; wait for it off the lock.
			p.mu.Unlock()
			select {
			case <-e.ready:
			case <-ctx.Done():
				return nil, tgerrors.NewTransportError("transport acquire cancelled", ctx.Err())
			}
		}
	}
}

// establish dials for a pending entry and publishes the outcome. Failure
// removes the entry so the key is free for the next attempt.
func (p *Pool) establish(e *poolEntry, params ConnectParams) (Transport, error) {
	t, err := p.dial(params, p.readyTimeout, p.keepalive)

	p.mu.Lock()
	if err != nil {
		e.dialErr = err
		if p.entries[e.key] == e {
			delete(p.entries, e.key)
		}
		close(e.ready)
		p.mu.Unlock()
		return nil, err
	}

	e.transport = t
	close(e.ready)
	shutdownRace := p.closed
	p.mu.Unlock()

	if shutdownRace {
		_ = t.Close()
		return nil, tgerrors.NewTransportError("transport pool is shut down", nil)
	}

	logger.Infof("Opened SSH transport %s", e.key)
	go p.watch(e)
	return t, nil
}

// watch removes the entry the moment its transport closes, from either side,
// regardless of reference count. Dependent sessions observe their channels
// closing and clean up on their own.
func (p *Pool) watch(e *poolEntry) {
	_ = e.transport.Wait()

	p.mu.Lock()
	if p.entries[e.key] == e {
		delete(p.entries, e.key)
	}
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
	p.mu.Unlock()
	logger.Infof("SSH transport %s closed", e.key)
}

// Release drops one reference on the pooled transport t under key. At zero
// references the idle timer is armed; a later Acquire disarms it. A release
// whose transport is no longer the pooled one is a no-op: its entry was
// already removed by a transport-level close, and a successor entry under the
// same key must not absorb stale releases.
func (p *Pool) Release(key PoolKey, t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok || e.transport != t || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs > 0 || p.closed {
		return
	}

	entry := e
	e.idleTimer = time.AfterFunc(p.idleTimeout, func() {
		p.expire(entry)
	})
}

// expire closes an entry's transport if it is still pooled and unreferenced.
func (p *Pool) expire(e *poolEntry) {
	p.mu.Lock()
	if p.entries[e.key] != e || e.refs > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.entries, e.key)
	p.mu.Unlock()

	logger.Debugf("Closing idle SSH transport %s", e.key)
	_ = e.transport.Close()
}

// Refcount reports the number of references currently held on the key's
// transport. Zero means no live entry or an unreferenced one.
func (p *Pool) Refcount(key PoolKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Size reports the number of pooled transports, including unreferenced ones
// still inside their idle window.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Shutdown cancels every idle timer and closes every transport. Subsequent
// acquires fail.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	entries := make([]*poolEntry, 0, len(p.entries))
	for key, e := range p.entries {
		if e.idleTimer != nil {
			e.idleTimer.Stop()
			e.idleTimer = nil
		}
		entries = append(entries, e)
		delete(p.entries, key)
	}
	p.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.ready:
			if e.dialErr == nil {
				_ = e.transport.Close()
			}
		default:
			// Still dialing; establish notices p.closed and closes it.
		}
	}
}
