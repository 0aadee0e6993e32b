package gateway

import (
	"github.com/termgate/termgate/pkg/remote"
)

// Frame type identifiers. Every frame is a JSON text message with a
// mandatory "type" field.
const (
	// client → server
	frameCreateTerminal = "create_terminal"
	frameCreateSandbox  = "create_sandbox"
	frameCloneTerminal  = "clone_terminal"
	frameInput          = "input"
	frameResize         = "resize"
	frameCloseTerminal  = "close_terminal"
	frameCreateSSH      = "create_ssh"
	frameDuplicateSSH   = "duplicate_ssh"
	frameReconnectSSH   = "reconnect_ssh"
	frameSSHInput       = "ssh_input"
	frameSSHResize      = "ssh_resize"
	frameCloseSSH       = "close_ssh"

	// server → client
	frameConnectionEstablished = "connection_established"
	frameTerminalCreated       = "terminal_created"
	frameSSHCreated            = "ssh_created"
	frameData                  = "data"
	frameSSHData               = "ssh_data"
	frameTerminalExit          = "terminal_exit"
	frameTerminalClosed        = "terminal_closed"
	frameSSHClosed             = "ssh_closed"
	frameError                 = "error"
)

// clientFrame is the inbound envelope. One flat struct covers every request
// type; dispatch reads only the fields its type defines.
type clientFrame struct {
	Type string `json:"type"`

	// create_terminal / create_sandbox / clone_terminal / resize
	Cols        int    `json:"cols,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	Title       string `json:"title,omitempty"`
	KubeContext string `json:"kubeContext,omitempty"`
	Image       string `json:"image,omitempty"`

	// clone_terminal
	OriginalSessionID string `json:"originalSessionId,omitempty"`
	CloneType         string `json:"cloneType,omitempty"`

	// input / resize / close / ssh session operations
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`

	// create_ssh
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Term       string `json:"term,omitempty"`
}

type connectionEstablishedFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type terminalCreatedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
	Cloned    bool   `json:"cloned,omitempty"`
	IsSandbox bool   `json:"isSandbox,omitempty"`
	CloneType string `json:"cloneType,omitempty"`
}

type sshCreatedFrame struct {
	Type        string            `json:"type"`
	SessionID   string            `json:"sessionId"`
	Title       string            `json:"title"`
	Params      remote.SafeParams `json:"params"`
	Cloned      bool              `json:"cloned,omitempty"`
	Duplicated  bool              `json:"duplicated,omitempty"`
	Reconnected bool              `json:"reconnected,omitempty"`
}

type dataFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type exitFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Code      int    `json:"code"`
}

type closedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
