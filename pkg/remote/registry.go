package remote

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/telemetry"
)

// Client receives remote session output and close notifications. The gateway
// client implements it; a disconnected client must turn these into no-ops.
type Client interface {
	// SSHData delivers an output chunk for the session. The slice is only
	// valid for the duration of the call.
	SSHData(sessionID string, data []byte)

	// SSHClosed tells the client the session is gone.
	SSHClosed(sessionID string)
}

// ParamsStore remembers connection parameters per session identifier so
// clients can reconnect after the session is gone.
type ParamsStore interface {
	Save(ctx context.Context, sessionID string, params ConnectParams) error
	Get(ctx context.Context, sessionID string) (ConnectParams, bool, error)
}

// CreateResult is what a successful create, duplicate or reconnect reports
// back: the session identity and the credential-free parameter echo.
type CreateResult struct {
	SessionID string
	Title     string
	Params    SafeParams
}

// SessionInfo is the public view of a live SSH session.
type SessionInfo struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Params       SafeParams `json:"params"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	Cols         int        `json:"cols"`
	Rows         int        `json:"rows"`
}

// remoteSession is one live shell channel and its bookkeeping.
type remoteSession struct {
	id        string
	title     string
	params    ConnectParams
	key       PoolKey
	transport Transport
	channel   Channel
	client    Client
	createdAt time.Time

	mu           sync.Mutex
	cols         int
	rows         int
	lastActivity time.Time

	teardown sync.Once
}

func (s *remoteSession) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *remoteSession) setGeometry(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

// pump forwards one output stream to the owning client until it ends.
// Stdout and stderr each get their own pump so arrival order is preserved
// per stream.
func (s *remoteSession) pump(stream io.Reader) {
	buf := make([]byte, channelReadBufferSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			s.touch()
			s.client.SSHData(s.id, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Registry owns interactive SSH shell sessions and routes bytes between each
// channel and its client. Transports come from the pool and are released
// when the last dependent session closes.
type Registry struct {
	pool    *Pool
	store   ParamsStore
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	sessions map[string]*remoteSession
}

// NewRegistry creates an empty SSH session registry on top of the pool.
func NewRegistry(pool *Pool, store ParamsStore, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		pool:     pool,
		store:    store,
		metrics:  metrics,
		sessions: make(map[string]*remoteSession),
	}
}

// Create opens a new SSH session for the client. The transport is pooled;
// the shell channel is exclusive to this session. The parameters are
// remembered for later reconnects.
func (r *Registry) Create(ctx context.Context, client Client, params ConnectParams) (*CreateResult, error) {
	if err := params.CheckAndSetDefaults(); err != nil {
		return nil, tgerrors.NewRemoteOpenFailedError(err.Error(), nil)
	}
	return r.create(ctx, client, uuid.NewString(), params)
}

// Duplicate opens a second independent session with the original's saved
// parameters. The matching pool key reuses the original's transport.
func (r *Registry) Duplicate(ctx context.Context, client Client, sessionID string) (*CreateResult, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, tgerrors.NewUnknownSessionError(fmt.Sprintf("no SSH session %s", sessionID), nil)
	}
	return r.create(ctx, client, uuid.NewString(), s.params)
}

// Reconnect creates a fresh session from the remembered parameters for the
// identifier, retaining that identifier. A session still live under the id is
// closed first.
func (r *Registry) Reconnect(ctx context.Context, client Client, sessionID string) (*CreateResult, error) {
	params, ok, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tgerrors.NewUnknownSessionError(fmt.Sprintf("no remembered parameters for session %s", sessionID), nil)
	}
	if err := params.CheckAndSetDefaults(); err != nil {
		return nil, tgerrors.NewRemoteOpenFailedError(err.Error(), nil)
	}

	r.Close(sessionID)
	return r.create(ctx, client, sessionID, params)
}

// create acquires a transport, opens the shell channel and registers the
// session. Any failure releases what was acquired, in reverse order.
func (r *Registry) create(ctx context.Context, client Client, id string, params ConnectParams) (*CreateResult, error) {
	transport, err := r.pool.Acquire(ctx, params)
	if err != nil {
		return nil, err
	}

	channel, err := transport.OpenShell(params.Term, params.Cols, params.Rows)
	if err != nil {
		r.pool.Release(params.Key(), transport)
		return nil, tgerrors.NewRemoteOpenFailedError(fmt.Sprintf("cannot open shell on %s", params.Title()), err)
	}

	if err := ctx.Err(); err != nil {
		// The client went away while we were establishing.
		_ = channel.Close()
		r.pool.Release(params.Key(), transport)
		return nil, tgerrors.NewRemoteOpenFailedError("session creation cancelled", err)
	}

	now := time.Now()
	s := &remoteSession{
		id:           id,
		title:        params.Title(),
		params:       params,
		key:          params.Key(),
		transport:    transport,
		channel:      channel,
		client:       client,
		createdAt:    now,
		cols:         params.Cols,
		rows:         params.Rows,
		lastActivity: now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.metrics.SessionStarted(telemetry.KindSSH)

	// Remembering the parameters is advisory; failure never fails the create.
	if err := r.store.Save(ctx, id, params); err != nil {
		logger.Warnf("Failed to remember SSH parameters for session %s: %v", id, err)
	}

	go s.pump(channel.Stdout())
	go s.pump(channel.Stderr())
	go r.watch(s)

	logger.Infow("SSH session created", "session_id", id, "target", s.title)
	return &CreateResult{SessionID: id, Title: s.title, Params: params.Safe()}, nil
}

// watch drives teardown when the channel closes from any cause: remote shell
// exit, transport failure, or our own Close.
func (r *Registry) watch(s *remoteSession) {
	_ = s.channel.Wait()
	r.Close(s.id)
}

// Input writes opaque bytes to the session's channel. Unknown ids are
// silently dropped; the client has a stale identifier.
func (r *Registry) Input(sessionID string, data []byte) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s.touch()
	if _, err := s.channel.Write(data); err != nil {
		logger.Debugf("SSH input write failed for session %s: %v", sessionID, err)
	}
}

// Resize sends a window-change for the new geometry and records it. Unknown
// ids are silently dropped.
func (r *Registry) Resize(sessionID string, cols, rows int) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s.setGeometry(cols, rows)
	if err := s.channel.Resize(cols, rows); err != nil {
		logger.Debugf("SSH resize failed for session %s: %v", sessionID, err)
	}
}

// Close ends the session: channel first, pooled transport second, entry
// last. The owning client is notified exactly once. Closing an unknown id
// reports false.
func (r *Registry) Close(sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.teardown.Do(func() {
		_ = s.channel.Close()
		r.pool.Release(s.key, s.transport)
		r.metrics.SessionEnded(telemetry.KindSSH)
		s.client.SSHClosed(s.id)
		logger.Infow("SSH session closed", "session_id", s.id, "target", s.title)
	})
	return true
}

// CloseAllForClient closes every session owned by the client. Ownership is
// reference identity: a reconnected client is a different owner.
func (r *Registry) CloseAllForClient(client Client) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.client == client {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Close(id)
	}
}

// List returns the public view of every live session.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		info := SessionInfo{
			ID:           s.id,
			Title:        s.title,
			Params:       s.params.Safe(),
			CreatedAt:    s.createdAt,
			LastActivity: s.lastActivity,
			Cols:         s.cols,
			Rows:         s.rows,
		}
		s.mu.Unlock()
		infos = append(infos, info)
	}
	return infos
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown closes every session. The pool is shut down separately by its
// owner.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Close(id)
	}
}
