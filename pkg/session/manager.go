package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/uuid"

	"github.com/termgate/termgate/pkg/container/docker"
	"github.com/termgate/termgate/pkg/container/runtime"
	tgerrors "github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/telemetry"
)

const (
	defaultCols = 80
	defaultRows = 30

	// ptyReadBufferSize is the chunk size for draining PTY output.
	ptyReadBufferSize = 32 * 1024

	// defaultKillGrace is how long a hung-up child gets to exit on its own
	// before it is killed.
	defaultKillGrace = 500 * time.Millisecond

	// defaultKubeContextDelay is the fixed pause before the context-switch
	// lines are typed into a fresh shell. There is no readiness probe; the
	// shell just gets a moment to print its prompt.
	defaultKubeContextDelay = 1200 * time.Millisecond

	// defaultCwdRefreshDelay is the pause between seeing what looks like a
	// directory change and re-reading the child's working directory.
	defaultCwdRefreshDelay = 500 * time.Millisecond

	// stopContainerTimeout bounds the container stop during sandbox
	// session teardown.
	stopContainerTimeout = 10 * time.Second

	// duplicateSuffix is appended to a duplicated session's title.
	duplicateSuffix = " (copy)"

	// kubeContextEnv marks shells created with a kubectl context selected.
	kubeContextEnv = "TERMGATE_KUBE_CONTEXT"
)

// ImageRecorder remembers container images that sandboxes were started from.
// catalog.ImageCatalog implements it.
type ImageRecorder interface {
	Add(ctx context.Context, image string) ([]string, error)
}

// runtimeFactory connects to a container runtime. The default probes Podman
// then Docker; tests substitute a fake.
type runtimeFactory func(ctx context.Context) (runtime.Runtime, error)

// LocalOptions parameterizes CreateLocal.
type LocalOptions struct {
	Cols        int
	Rows        int
	Title       string
	KubeContext string
}

// SandboxOptions parameterizes CreateSandbox.
type SandboxOptions struct {
	Cols  int
	Rows  int
	Image string
	Title string
}

// Manager owns local and sandbox sessions: it spawns their children under
// pseudo-terminals, routes bytes between each child and its client, and
// guarantees children and containers are gone when their session is.
type Manager struct {
	images  ImageRecorder
	metrics *telemetry.Metrics

	spawn      spawnFunc
	newRuntime runtimeFactory
	cwd        cwdFunc

	killGrace        time.Duration
	kubeContextDelay time.Duration
	cwdRefreshDelay  time.Duration

	// rt caches the detected runtime; a failed probe is retried on the
	// next sandbox operation.
	rtMu sync.Mutex
	rt   runtime.Runtime

	mu       sync.RWMutex
	sessions map[string]*Session
	seq      int

	wg sync.WaitGroup
}

// NewManager creates an empty session manager.
func NewManager(images ImageRecorder, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		images:  images,
		metrics: metrics,
		spawn:   startPTY,
		newRuntime: func(ctx context.Context) (runtime.Runtime, error) {
			client, err := docker.NewClient(ctx)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		cwd:              processCwd,
		killGrace:        defaultKillGrace,
		kubeContextDelay: defaultKubeContextDelay,
		cwdRefreshDelay:  defaultCwdRefreshDelay,
		sessions:         make(map[string]*Session),
	}
}

// CreateLocal starts the platform shell under a new pseudo-terminal in the
// user's home directory with the full ambient environment. With a kube
// context the shell is additionally told to switch to it shortly after
// starting.
func (m *Manager) CreateLocal(ctx context.Context, client Client, opts LocalOptions) (*CreateResult, error) {
	cols, rows := normalizeGeometry(opts.Cols, opts.Rows)
	title := opts.Title
	if title == "" {
		title = m.nextTitle()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	env := append(os.Environ(), "TERM=xterm-256color")
	if opts.KubeContext != "" {
		env = append(env, kubeContextEnv+"="+opts.KubeContext)
	}

	id := uuid.NewString()
	s, err := m.start(ctx, client, startSpec{
		id:    id,
		kind:  KindLocal,
		title: title,
		argv:  []string{defaultShell()},
		dir:   home,
		env:   env,
		cols:  cols,
		rows:  rows,
	})
	if err != nil {
		return nil, tgerrors.NewSpawnFailedError("cannot start local shell", err)
	}

	if opts.KubeContext != "" {
		m.scheduleKubeContext(s.id, opts.KubeContext)
	}
	return &CreateResult{SessionID: s.id, Title: s.title, Kind: KindLocal}, nil
}

// CreateSandbox makes the image available, creates a fresh container for the
// session and attaches an interactive shell to it under a new
// pseudo-terminal. The image is added to the remembered-image catalog.
func (m *Manager) CreateSandbox(ctx context.Context, client Client, opts SandboxOptions) (*CreateResult, error) {
	if opts.Image == "" {
		return nil, tgerrors.NewCreateFailedError("image is required", nil)
	}
	if _, err := name.ParseReference(opts.Image); err != nil {
		return nil, tgerrors.NewCreateFailedError(fmt.Sprintf("invalid image reference %q", opts.Image), err)
	}

	cols, rows := normalizeGeometry(opts.Cols, opts.Rows)
	title := opts.Title
	if title == "" {
		title = opts.Image
	}

	rt, err := m.runtime(ctx)
	if err != nil {
		return nil, err
	}
	if err := rt.EnsureImage(ctx, opts.Image); err != nil {
		return nil, tgerrors.NewPullFailedError(fmt.Sprintf("cannot ensure image %s", opts.Image), err)
	}

	id := uuid.NewString()
	containerName, err := rt.CreateContainer(ctx, id, opts.Image)
	if err != nil {
		return nil, tgerrors.NewCreateFailedError(fmt.Sprintf("cannot create container from %s", opts.Image), err)
	}

	s, err := m.start(ctx, client, startSpec{
		id:            id,
		kind:          KindSandbox,
		title:         title,
		argv:          rt.ExecSpec(containerName),
		env:           os.Environ(),
		cols:          cols,
		rows:          rows,
		containerName: containerName,
		image:         opts.Image,
		ownsContainer: true,
	})
	if err != nil {
		// The exec never started, so only the container needs cleanup.
		stopCtx, cancel := context.WithTimeout(context.Background(), stopContainerTimeout)
		defer cancel()
		if stopErr := rt.StopContainer(stopCtx, containerName); stopErr != nil {
			logger.Warnf("Failed to stop container %s after exec failure: %v", containerName, stopErr)
		}
		return nil, tgerrors.NewExecFailedError(fmt.Sprintf("cannot attach shell to container %s", containerName), err)
	}

	if _, err := m.images.Add(ctx, opts.Image); err != nil {
		logger.Warnf("Failed to remember image %s: %v", opts.Image, err)
	}
	return &CreateResult{SessionID: s.id, Title: s.title, Kind: KindSandbox}, nil
}

// Duplicate starts a second session modeled on an existing one. A local
// session's duplicate is a new shell in the original's current working
// directory; a sandbox session's duplicate is a second shell in the same
// container, which stays owned by the original.
func (m *Manager) Duplicate(ctx context.Context, client Client, sessionID string) (*CreateResult, error) {
	m.mu.RLock()
	orig, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, tgerrors.NewUnknownSessionError(fmt.Sprintf("no session %s", sessionID), nil)
	}

	orig.mu.Lock()
	cols, rows := orig.cols, orig.rows
	trackedDir := orig.workDir
	title := orig.title + duplicateSuffix
	orig.mu.Unlock()

	id := uuid.NewString()
	var s *Session
	var err error
	switch orig.kind {
	case KindSandbox:
		rt, rtErr := m.runtime(ctx)
		if rtErr != nil {
			return nil, rtErr
		}
		running, runErr := rt.IsRunning(ctx, orig.containerName)
		if runErr != nil || !running {
			return nil, tgerrors.NewExecFailedError(fmt.Sprintf("container %s is not running", orig.containerName), runErr)
		}
		s, err = m.start(ctx, client, startSpec{
			id:            id,
			kind:          KindSandbox,
			title:         title,
			argv:          rt.ExecSpec(orig.containerName),
			env:           os.Environ(),
			cols:          cols,
			rows:          rows,
			containerName: orig.containerName,
			image:         orig.image,
			ownsContainer: false,
		})
		if err != nil {
			return nil, tgerrors.NewExecFailedError(fmt.Sprintf("cannot attach shell to container %s", orig.containerName), err)
		}
	default:
		s, err = m.start(ctx, client, startSpec{
			id:    id,
			kind:  KindLocal,
			title: title,
			argv:  []string{defaultShell()},
			dir:   m.detectCwd(ctx, orig, trackedDir),
			env:   append([]string(nil), orig.env...),
			cols:  cols,
			rows:  rows,
		})
		if err != nil {
			return nil, tgerrors.NewSpawnFailedError("cannot start local shell", err)
		}
	}
	return &CreateResult{SessionID: s.id, Title: s.title, Kind: s.kind}, nil
}

// Input writes opaque bytes to the session's terminal. Unknown ids are
// silently dropped; the client has a stale identifier.
func (m *Manager) Input(sessionID string, data []byte) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.touch()
	if _, err := s.proc.Write(data); err != nil {
		logger.Debugf("Input write failed for session %s: %v", sessionID, err)
	}
	if s.kind == KindLocal && looksLikeChdir(data) {
		m.scheduleCwdRefresh(s)
	}
}

// Resize adjusts the terminal geometry and records it. Unknown ids are
// silently dropped.
func (m *Manager) Resize(sessionID string, cols, rows int) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.setGeometry(cols, rows)
	if err := s.proc.Resize(cols, rows); err != nil {
		logger.Debugf("Resize failed for session %s: %v", sessionID, err)
	}
}

// Close ends the session: the client is notified, the child is hung up and
// killed after a grace period, and a sandbox owner's container is stopped.
// Closing an unknown id reports false.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.notifyOnce.Do(func() {
		s.setState(StateClosing)
		m.metrics.SessionEnded(string(s.kind))
		s.client.Closed(s.id)
		logger.Infow("Session closed", "session_id", s.id, "kind", s.kind)
	})
	go m.cleanup(s)
	return true
}

// CloseAllForClient closes every session owned by the client. Ownership is
// reference identity: a reconnected client is a different owner.
func (m *Manager) CloseAllForClient(client Client) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.client == client {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// List returns the public view of every live session.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info())
	}
	return infos
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session and waits for children and containers to be
// cleaned up.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
	m.wg.Wait()
}

// startSpec is the internal create request shared by the public operations.
type startSpec struct {
	id            string
	kind          Kind
	title         string
	argv          []string
	dir           string
	env           []string
	cols          int
	rows          int
	containerName string
	image         string
	ownsContainer bool
}

// start spawns the child and registers the session. A session only becomes
// observable after its child is running.
func (m *Manager) start(ctx context.Context, client Client, sp startSpec) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Session{
		id:            sp.id,
		kind:          sp.kind,
		title:         sp.title,
		client:        client,
		env:           sp.env,
		containerName: sp.containerName,
		image:         sp.image,
		ownsContainer: sp.ownsContainer,
		state:         StateStarting,
		cols:          sp.cols,
		rows:          sp.rows,
		workDir:       sp.dir,
		done:          make(chan struct{}),
	}

	proc, err := m.spawn(spawnSpec{Argv: sp.argv, Dir: sp.dir, Env: sp.env, Cols: sp.cols, Rows: sp.rows})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s.proc = proc
	s.createdAt = now
	s.lastActivity = now
	s.setState(StateRunning)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.wg.Add(1)
	m.metrics.SessionStarted(string(s.kind))

	go m.readLoop(s)
	go m.waitLoop(s)

	logger.Infow("Session created", "session_id", s.id, "kind", s.kind, "title", s.title, "pid", proc.Pid())
	return s, nil
}

// readLoop forwards terminal output to the owning client until the master
// side reports an error, which on every platform follows child exit.
func (m *Manager) readLoop(s *Session) {
	buf := make([]byte, ptyReadBufferSize)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			s.touch()
			s.client.Data(s.id, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// waitLoop reaps the child and finishes the session when the child exits on
// its own. An explicit Close wins the notification race; then this only
// completes the cleanup.
func (m *Manager) waitLoop(s *Session) {
	code := s.proc.Wait()
	close(s.done)

	m.mu.Lock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	s.notifyOnce.Do(func() {
		s.setState(StateClosing)
		m.metrics.SessionEnded(string(s.kind))
		s.client.Exit(s.id, code)
		logger.Infow("Session exited", "session_id", s.id, "kind", s.kind, "code", code)
	})
	m.cleanup(s)
}

// cleanup hangs up the terminal, kills the child if it lingers past the
// grace period, and stops the container of a sandbox owner. Runs exactly
// once per session no matter which path triggers it.
func (m *Manager) cleanup(s *Session) {
	s.cleanupOnce.Do(func() {
		defer m.wg.Done()

		_ = s.proc.CloseMaster()
		select {
		case <-s.done:
		case <-time.After(m.killGrace):
			_ = s.proc.Kill()
		}

		if s.kind == KindSandbox && s.ownsContainer {
			m.stopContainer(s.containerName)
		}
		s.setState(StateClosed)
	})
}

func (m *Manager) stopContainer(containerName string) {
	rt := m.cachedRuntime()
	if rt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopContainerTimeout)
	defer cancel()
	if err := rt.StopContainer(ctx, containerName); err != nil {
		logger.Warnf("Failed to stop container %s: %v", containerName, err)
	}
}

// runtime returns the detected container runtime, probing on first use.
// Only a successful probe is cached; a host where the runtime comes up
// later should not be stuck with a stale failure.
func (m *Manager) runtime(ctx context.Context) (runtime.Runtime, error) {
	m.rtMu.Lock()
	defer m.rtMu.Unlock()
	if m.rt != nil {
		return m.rt, nil
	}
	rt, err := m.newRuntime(ctx)
	if err != nil {
		return nil, tgerrors.NewNoRuntimeError("no container runtime available", err)
	}
	m.rt = rt
	logger.Infof("Using %s container runtime", rt.Type())
	return rt, nil
}

func (m *Manager) cachedRuntime() runtime.Runtime {
	m.rtMu.Lock()
	defer m.rtMu.Unlock()
	return m.rt
}

// detectCwd queries the live child's working directory, falling back to the
// tracked value when inspection fails.
func (m *Manager) detectCwd(ctx context.Context, s *Session, fallback string) string {
	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	dir, err := m.cwd(cctx, s.proc.Pid())
	if err != nil || dir == "" {
		logger.Debugf("Working directory detection failed for session %s: %v", s.id, err)
		return fallback
	}
	return dir
}

// scheduleCwdRefresh re-reads the child's working directory after the shell
// has had a moment to process the input that looked like a directory change.
func (m *Manager) scheduleCwdRefresh(s *Session) {
	time.AfterFunc(m.cwdRefreshDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		dir, err := m.cwd(ctx, s.proc.Pid())
		if err != nil || dir == "" {
			return
		}
		s.setWorkDir(dir)
	})
}

// scheduleKubeContext types the context switch into the shell after a fixed
// pause. There is no shell readiness probe; a prompt that takes longer than
// the pause gets the lines as pending input, which shells replay.
func (m *Manager) scheduleKubeContext(sessionID, kubeContext string) {
	time.AfterFunc(m.kubeContextDelay, func() {
		m.mu.RLock()
		s, ok := m.sessions[sessionID]
		m.mu.RUnlock()
		if !ok {
			return
		}
		lines := fmt.Sprintf("kubectl config use-context %s\necho 'kubectl context: %s'\n", kubeContext, kubeContext)
		if _, err := s.proc.Write([]byte(lines)); err != nil {
			logger.Debugf("kubectl context injection failed for session %s: %v", sessionID, err)
		}
	})
}

// nextTitle numbers untitled local sessions.
func (m *Manager) nextTitle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("Terminal %d", m.seq)
}

// looksLikeChdir is a cheap screen for input that probably changes the
// shell's directory. Tracking is best-effort: duplication inspects the live
// process first and uses the tracked value only as fallback.
func looksLikeChdir(data []byte) bool {
	return bytes.Contains(data, []byte("cd ")) || bytes.Equal(bytes.TrimSpace(data), []byte("cd"))
}

func normalizeGeometry(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	return cols, rows
}
