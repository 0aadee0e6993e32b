package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/state"
)

const (
	// sshParamsDoc is the state document holding remembered SSH parameters
	sshParamsDoc = "ssh-params"

	// DefaultSSHParamsTTL is how long remembered SSH parameters are kept
	// before they become eligible for eviction.
	DefaultSSHParamsTTL = 7 * 24 * time.Hour
)

// SavedSSHParams is a remembered parameter set with the time it was saved.
// Unlike frames and logs the persisted record keeps the credentials; without
// them a later reconnect could not re-establish the transport. The backing
// file is only readable by the owning user.
type SavedSSHParams struct {
	remote.ConnectParams
	SavedAt time.Time `json:"savedAt"`
}

// SSHParamsCatalog persists connection parameters per session identifier so
// that clients can reconnect to a remote host after the session is gone.
// Entries older than the TTL are evicted on the next write.
type SSHParamsCatalog struct {
	store state.Store
	ttl   time.Duration
	mu    sync.Mutex

	now func() time.Time
}

// NewSSHParamsCatalog creates an SSH parameter catalog backed by the given
// store. A non-positive ttl selects DefaultSSHParamsTTL.
func NewSSHParamsCatalog(store state.Store, ttl time.Duration) *SSHParamsCatalog {
	if ttl <= 0 {
		ttl = DefaultSSHParamsTTL
	}
	return &SSHParamsCatalog{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save remembers the parameters under the session identifier and evicts any
// expired entries while it holds the lock.
func (c *SSHParamsCatalog) Save(ctx context.Context, sessionID string, params remote.ConnectParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fileLock := flock.New(c.store.LockPath(sshParamsDoc))
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return errors.NewPersistFailedError("failed to acquire ssh params lock", err)
	}
	if !locked {
		return errors.NewPersistFailedError(fmt.Sprintf("ssh params lock timeout after %v", lockTimeout), nil)
	}
	defer fileLock.Unlock()

	saved, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.prune(saved)
	saved[sessionID] = SavedSSHParams{ConnectParams: params, SavedAt: c.now()}
	return c.save(ctx, saved)
}

// Get returns the remembered parameters for the session identifier. Expired
// entries are treated as absent even if eviction has not run yet.
func (c *SSHParamsCatalog) Get(ctx context.Context, sessionID string) (remote.ConnectParams, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved, err := c.load(ctx)
	if err != nil {
		return remote.ConnectParams{}, false, err
	}
	entry, ok := saved[sessionID]
	if !ok || c.expired(entry) {
		return remote.ConnectParams{}, false, nil
	}
	return entry.ConnectParams, true, nil
}

func (c *SSHParamsCatalog) expired(entry SavedSSHParams) bool {
	return c.now().Sub(entry.SavedAt) > c.ttl
}

func (c *SSHParamsCatalog) prune(saved map[string]SavedSSHParams) {
	for id, entry := range saved {
		if c.expired(entry) {
			delete(saved, id)
		}
	}
}

func (c *SSHParamsCatalog) load(ctx context.Context) (map[string]SavedSSHParams, error) {
	exists, err := c.store.Exists(ctx, sshParamsDoc)
	if err != nil {
		return nil, errors.NewPersistFailedError("failed to check ssh params catalog", err)
	}
	if !exists {
		return map[string]SavedSSHParams{}, nil
	}

	r, err := c.store.GetReader(ctx, sshParamsDoc)
	if err != nil {
		return nil, errors.NewPersistFailedError("failed to open ssh params catalog", err)
	}
	defer r.Close()

	var saved map[string]SavedSSHParams
	if err := json.NewDecoder(r).Decode(&saved); err != nil {
		return nil, errors.NewPersistFailedError("failed to parse ssh params catalog", err)
	}
	if saved == nil {
		saved = map[string]SavedSSHParams{}
	}
	return saved, nil
}

func (c *SSHParamsCatalog) save(ctx context.Context, saved map[string]SavedSSHParams) error {
	w, err := c.store.GetWriter(ctx, sshParamsDoc)
	if err != nil {
		return errors.NewPersistFailedError("failed to open ssh params catalog for writing", err)
	}
	defer w.Close()

	if err := json.NewEncoder(w).Encode(saved); err != nil {
		return errors.NewPersistFailedError("failed to write ssh params catalog", err)
	}
	return nil
}
