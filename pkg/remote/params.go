// Package remote implements SSH-backed terminal sessions: a reference-counted
// pool of SSH transports keyed by (host, port, username) and a registry of
// shell sessions multiplexed over them.
package remote

import (
	"fmt"
)

const (
	// DefaultPort is the SSH port used when the client omits one
	DefaultPort = 22

	// DefaultTerm is the terminal type requested when the client omits one
	DefaultTerm = "xterm-256color"

	// DefaultCols is the terminal width used when the client omits one
	DefaultCols = 80

	// DefaultRows is the terminal height used when the client omits one
	DefaultRows = 30
)

// ConnectParams are the client-supplied parameters for opening an SSH
// session. Either Password or PrivateKey must be set; Passphrase only applies
// to encrypted private keys. Geometry travels with the parameters so that a
// remembered copy can recreate the session as it was.
type ConnectParams struct {
	Host       string `json:"host"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Term       string `json:"term,omitempty"`
	Cols       int    `json:"cols,omitempty"`
	Rows       int    `json:"rows,omitempty"`
}

// CheckAndSetDefaults validates the parameters and fills in defaults.
func (p *ConnectParams) CheckAndSetDefaults() error {
	if p.Host == "" {
		return fmt.Errorf("missing host")
	}
	if p.Username == "" {
		return fmt.Errorf("missing username")
	}
	if p.Password == "" && p.PrivateKey == "" {
		return fmt.Errorf("missing credentials: need a password or a private key")
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.Term == "" {
		p.Term = DefaultTerm
	}
	if p.Cols <= 0 {
		p.Cols = DefaultCols
	}
	if p.Rows <= 0 {
		p.Rows = DefaultRows
	}
	return nil
}

// Key returns the transport pool key for the parameters.
func (p *ConnectParams) Key() PoolKey {
	return PoolKey{Host: p.Host, Port: p.Port, Username: p.Username}
}

// Safe returns the credential-free view of the parameters.
func (p *ConnectParams) Safe() SafeParams {
	return SafeParams{Host: p.Host, Port: p.Port, Username: p.Username}
}

// Title is the human-readable session title shown to clients.
func (p *ConnectParams) Title() string {
	return fmt.Sprintf("%s@%s", p.Username, p.Host)
}

// PoolKey identifies the transport a session multiplexes over. Credentials
// are deliberately not part of the key.
type PoolKey struct {
	Host     string
	Port     int
	Username string
}

// String renders the key as username@host:port.
func (k PoolKey) String() string {
	return fmt.Sprintf("%s@%s:%d", k.Username, k.Host, k.Port)
}

// SafeParams is the credential-free subset of ConnectParams echoed back to
// clients and written to logs. Password, private key and passphrase must
// never leave the process through frames or log lines.
type SafeParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}
