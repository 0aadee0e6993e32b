package session

import (
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/creack/pty"
)

// spawnSpec describes the child process to start under a pseudo-terminal.
type spawnSpec struct {
	Argv []string
	Dir  string
	Env  []string
	Cols int
	Rows int
}

// child is a running process attached to the master side of a
// pseudo-terminal. Read returns the process's terminal output; Write feeds
// its input.
type child interface {
	io.Reader
	io.Writer

	// Resize changes the terminal geometry.
	Resize(cols, rows int) error

	// Pid reports the child's process id.
	Pid() int

	// CloseMaster closes the master side, hanging up the child's terminal.
	CloseMaster() error

	// Kill terminates the child immediately.
	Kill() error

	// Wait blocks until the child is reaped and reports its exit code, -1
	// when the process was killed by a signal.
	Wait() int
}

// spawnFunc starts a child for the spec. The default is startPTY; tests
// substitute a fake.
type spawnFunc func(spec spawnSpec) (child, error)

// ptyChild is the production child implementation on top of creack/pty.
type ptyChild struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func startPTY(spec spawnSpec) (child, error) {
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...) //nolint:gosec // argv comes from the runtime adapter or the platform shell, not the client
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(spec.Cols), //nolint:gosec // G115: geometry is normalized to small positive values
		Rows: uint16(spec.Rows), //nolint:gosec // G115: same
	})
	if err != nil {
		return nil, err
	}
	return &ptyChild{cmd: cmd, ptmx: ptmx}, nil
}

func (c *ptyChild) Read(p []byte) (int, error)  { return c.ptmx.Read(p) }
func (c *ptyChild) Write(p []byte) (int, error) { return c.ptmx.Write(p) }

func (c *ptyChild) Resize(cols, rows int) error {
	return pty.Setsize(c.ptmx, &pty.Winsize{
		Cols: uint16(cols), //nolint:gosec // G115: geometry is small and positive
		Rows: uint16(rows), //nolint:gosec // G115: same
	})
}

func (c *ptyChild) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *ptyChild) CloseMaster() error {
	return c.ptmx.Close()
}

func (c *ptyChild) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

func (c *ptyChild) Wait() int {
	_ = c.cmd.Wait()
	if c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}

// defaultShell picks the platform shell for local sessions.
func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}
