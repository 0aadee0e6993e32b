// Package session implements the registry for terminal sessions backed by a
// local process: host shells and container-exec shells, each under its own
// pseudo-terminal.
package session

import (
	"sync"
	"time"
)

// Kind distinguishes the two process-backed session kinds. SSH sessions live
// in their own registry.
type Kind string

const (
	// KindLocal is a host shell session.
	KindLocal Kind = "local"

	// KindSandbox is a shell inside an ephemeral container.
	KindSandbox Kind = "sandbox"
)

// State is a session's lifecycle position: Starting before the child is
// spawned, Running while registered, Closing once teardown has begun and
// Closed after the client was notified.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateClosing  State = "closing"
	StateClosed   State = "closed"
)

// Client receives session output and lifecycle notifications. The gateway
// client implements it; a disconnected client must turn these into no-ops.
type Client interface {
	// Data delivers an output chunk for the session. The slice is only
	// valid for the duration of the call.
	Data(sessionID string, data []byte)

	// Exit tells the client the backing process ended on its own.
	Exit(sessionID string, code int)

	// Closed tells the client the session was closed explicitly.
	Closed(sessionID string)
}

// CreateResult is what a successful create or duplicate reports back.
type CreateResult struct {
	SessionID string
	Title     string
	Kind      Kind
}

// Info is the public view of a live session.
type Info struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	State        State     `json:"state"`
	Image        string    `json:"image,omitempty"`
	WorkingDir   string    `json:"workingDir,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Cols         int       `json:"cols"`
	Rows         int       `json:"rows"`
}

// Session is one live process-backed terminal and its bookkeeping.
type Session struct {
	id        string
	kind      Kind
	title     string
	client    Client
	proc      child
	env       []string
	createdAt time.Time

	// Sandbox sessions carry their container. A duplicate shares the
	// original's container without owning it; only the owner stops it.
	containerName string
	image         string
	ownsContainer bool

	mu           sync.Mutex
	state        State
	cols         int
	rows         int
	workDir      string
	lastActivity time.Time

	// done is closed once the child has been reaped.
	done chan struct{}

	// notifyOnce guards the single lifecycle notification: an explicit
	// close sends Closed, a self-terminating child sends Exit, never both.
	notifyOnce  sync.Once
	cleanupOnce sync.Once
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) setGeometry(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

func (s *Session) setWorkDir(dir string) {
	s.mu.Lock()
	s.workDir = dir
	s.mu.Unlock()
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.id,
		Kind:         s.kind,
		Title:        s.title,
		State:        s.state,
		Image:        s.image,
		WorkingDir:   s.workDir,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		Cols:         s.cols,
		Rows:         s.rows,
	}
}
