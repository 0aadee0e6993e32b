package remote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/telemetry"
)

// fakeRemoteClient records what the registry delivers to it.
type fakeRemoteClient struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed map[string]int
}

func newFakeRemoteClient() *fakeRemoteClient {
	return &fakeRemoteClient{
		data:   make(map[string][]byte),
		closed: make(map[string]int),
	}
}

func (c *fakeRemoteClient) SSHData(sessionID string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[sessionID] = append(c.data[sessionID], data...)
}

func (c *fakeRemoteClient) SSHClosed(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed[sessionID]++
}

func (c *fakeRemoteClient) dataFor(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data[sessionID])
}

func (c *fakeRemoteClient) closedCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed[sessionID]
}

// memParamsStore is an in-memory ParamsStore.
type memParamsStore struct {
	mu      sync.Mutex
	params  map[string]ConnectParams
	saveErr error
}

func newMemParamsStore() *memParamsStore {
	return &memParamsStore{params: make(map[string]ConnectParams)}
}

func (s *memParamsStore) Save(_ context.Context, sessionID string, params ConnectParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.params[sessionID] = params
	return nil
}

func (s *memParamsStore) Get(_ context.Context, sessionID string) (ConnectParams, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[sessionID]
	return p, ok, nil
}

func newTestRegistry(t *testing.T) (*Registry, *dialRecorder, *memParamsStore) {
	t.Helper()
	rec := &dialRecorder{}
	pool := NewPool(withDialFunc(rec.dial))
	store := newMemParamsStore()
	return NewRegistry(pool, store, telemetry.NewMetrics()), rec, store
}

func TestRegistryCreateOpensSession(t *testing.T) {
	t.Parallel()

	reg, rec, store := newTestRegistry(t)
	client := newFakeRemoteClient()

	res, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "alice@host-a", res.Title)
	assert.Equal(t, SafeParams{Host: "host-a", Port: 22, Username: "alice"}, res.Params)

	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, 1, reg.pool.Refcount(PoolKey{Host: "host-a", Port: 22, Username: "alice"}))
	require.Len(t, rec.transports, 1)

	saved, ok, err := store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.True(t, ok, "parameters must be remembered for reconnects")
	assert.Equal(t, "secret", saved.Password)

	counts, err := reg.metrics.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(1), counts["termgate_active_sessions{kind=ssh}"])
	assert.Equal(t, float64(1), counts["termgate_sessions_created_total{kind=ssh}"])
}

func TestRegistryCreateRejectsBadParams(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)

	_, err := reg.Create(context.Background(), newFakeRemoteClient(), ConnectParams{Port: 22})
	require.Error(t, err)
	assert.True(t, tgerrors.IsRemoteOpenFailed(err))
	assert.Equal(t, 0, rec.dialCount())
}

func TestRegistryOutputReachesClient(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	res, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)

	ch := rec.transports[0].shells[0]
	_, err = ch.stdoutW.Write([]byte("$ "))
	require.NoError(t, err)
	_, err = ch.stderrW.Write([]byte("warn\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got := client.dataFor(res.SessionID)
		return len(got) == len("$ warn\n")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, client.dataFor(res.SessionID), "$ ")
	assert.Contains(t, client.dataFor(res.SessionID), "warn\n")
}

func TestRegistryInputWritesToChannel(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	res, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)

	reg.Input(res.SessionID, []byte("ls -la\n"))
	assert.Equal(t, "ls -la\n", rec.transports[0].shells[0].inputString())

	// Unknown identifiers are dropped without complaint.
	reg.Input("no-such-session", []byte("rm -rf /\n"))
	assert.Equal(t, "ls -la\n", rec.transports[0].shells[0].inputString())
}

func TestRegistryResizeUpdatesGeometry(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	res, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)

	reg.Resize(res.SessionID, 120, 40)

	infos := reg.List()
	require.Len(t, infos, 1)
	assert.Equal(t, 120, infos[0].Cols)
	assert.Equal(t, 40, infos[0].Rows)

	ch := rec.transports[0].shells[0]
	ch.mu.Lock()
	cols, rows := ch.cols, ch.rows
	ch.mu.Unlock()
	assert.Equal(t, 120, cols)
	assert.Equal(t, 40, rows)

	reg.Resize("no-such-session", 10, 10)
}

func TestRegistryCloseNotifiesOnceAndReleases(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)
	client := newFakeRemoteClient()
	params := testParams("host-a")

	res, err := reg.Create(context.Background(), client, params)
	require.NoError(t, err)

	assert.True(t, reg.Close(res.SessionID))
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, 0, reg.pool.Refcount(params.Key()))
	assert.Equal(t, 1, client.closedCount(res.SessionID))

	// Closing again is a no-op, not a second notification.
	assert.False(t, reg.Close(res.SessionID))
	assert.Equal(t, 1, client.closedCount(res.SessionID))

	counts, err := reg.metrics.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(0), counts["termgate_active_sessions{kind=ssh}"])
}

func TestRegistryDuplicateSharesTransport(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()
	params := testParams("host-a")

	orig, err := reg.Create(context.Background(), client, params)
	require.NoError(t, err)
	dup, err := reg.Duplicate(context.Background(), client, orig.SessionID)
	require.NoError(t, err)

	assert.NotEqual(t, orig.SessionID, dup.SessionID)
	assert.Equal(t, orig.Title, dup.Title)
	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, 1, rec.dialCount(), "duplicate must reuse the pooled transport")
	assert.Equal(t, 2, reg.pool.Refcount(params.Key()))
	assert.Len(t, rec.transports[0].shells, 2)
}

func TestRegistryDuplicateUnknownSession(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)

	_, err := reg.Duplicate(context.Background(), newFakeRemoteClient(), "no-such-session")
	require.Error(t, err)
	assert.True(t, tgerrors.IsUnknownSession(err))
}

func TestRegistryReconnectUnknownSession(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)

	_, err := reg.Reconnect(context.Background(), newFakeRemoteClient(), "no-such-session")
	require.Error(t, err)
	assert.True(t, tgerrors.IsUnknownSession(err))
}

func TestRegistryReconnectKeepsIdentifier(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	orig, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)
	require.True(t, reg.Close(orig.SessionID))

	// Within the idle window the transport is still pooled, so the
	// reconnect opens a new channel without a new dial.
	second := newFakeRemoteClient()
	res, err := reg.Reconnect(context.Background(), second, orig.SessionID)
	require.NoError(t, err)

	assert.Equal(t, orig.SessionID, res.SessionID)
	assert.Equal(t, orig.Title, res.Title)
	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, 1, rec.dialCount())
	assert.Len(t, rec.transports[0].shells, 2)
}

func TestRegistryReconnectReplacesLiveSession(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	orig, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)

	second := newFakeRemoteClient()
	res, err := reg.Reconnect(context.Background(), second, orig.SessionID)
	require.NoError(t, err)

	assert.Equal(t, orig.SessionID, res.SessionID)
	assert.Equal(t, 1, reg.Count(), "live session under the id is replaced, not doubled")
	assert.Equal(t, 1, client.closedCount(orig.SessionID), "previous owner is told its session closed")

	first := rec.transports[0].shells[0]
	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	assert.True(t, closed, "replaced session's channel is closed")
}

func TestRegistryChannelExitTearsDownSession(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	client := newFakeRemoteClient()
	params := testParams("host-a")

	res, err := reg.Create(context.Background(), client, params)
	require.NoError(t, err)

	// Remote shell exits: the channel closes on its own.
	require.NoError(t, rec.transports[0].shells[0].Close())

	require.Eventually(t, func() bool {
		return reg.Count() == 0
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return client.closedCount(res.SessionID) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, reg.pool.Refcount(params.Key()))
}

func TestRegistryOpenShellFailureReleasesTransport(t *testing.T) {
	t.Parallel()

	reg, rec, _ := newTestRegistry(t)
	params := testParams("host-a")

	// Seed the pool so the failing shell-open hits an established transport.
	seed, err := reg.pool.Acquire(context.Background(), params)
	require.NoError(t, err)
	rec.transports[0].mu.Lock()
	rec.transports[0].shellErr = tgerrors.NewRemoteOpenFailedError("administratively prohibited", nil)
	rec.transports[0].mu.Unlock()

	_, err = reg.Create(context.Background(), newFakeRemoteClient(), params)
	require.Error(t, err)
	assert.True(t, tgerrors.IsRemoteOpenFailed(err))
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, 1, reg.pool.Refcount(params.Key()), "only the seed reference remains")

	reg.pool.Release(params.Key(), seed)
}

func TestRegistryStoreFailureDoesNotFailCreate(t *testing.T) {
	t.Parallel()

	reg, _, store := newTestRegistry(t)
	store.mu.Lock()
	store.saveErr = tgerrors.NewPersistFailedError("disk full", nil)
	store.mu.Unlock()

	res, err := reg.Create(context.Background(), newFakeRemoteClient(), testParams("host-a"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistryCloseAllForClient(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)
	mine := newFakeRemoteClient()
	theirs := newFakeRemoteClient()

	res1, err := reg.Create(context.Background(), mine, testParams("host-a"))
	require.NoError(t, err)
	res2, err := reg.Create(context.Background(), mine, testParams("host-b"))
	require.NoError(t, err)
	res3, err := reg.Create(context.Background(), theirs, testParams("host-a"))
	require.NoError(t, err)

	reg.CloseAllForClient(mine)

	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, 1, mine.closedCount(res1.SessionID))
	assert.Equal(t, 1, mine.closedCount(res2.SessionID))
	assert.Equal(t, 0, theirs.closedCount(res3.SessionID))

	infos := reg.List()
	require.Len(t, infos, 1)
	assert.Equal(t, res3.SessionID, infos[0].ID)
}

func TestRegistryShutdownClosesAllSessions(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)
	client := newFakeRemoteClient()

	_, err := reg.Create(context.Background(), client, testParams("host-a"))
	require.NoError(t, err)
	_, err = reg.Create(context.Background(), client, testParams("host-b"))
	require.NoError(t, err)

	reg.Shutdown()
	assert.Equal(t, 0, reg.Count())
}
