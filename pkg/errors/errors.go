// Package errors defines the typed errors surfaced by the terminal gateway.
package errors

import (
	"fmt"
)

// Error types
const (
	// ErrInvalidFrame is returned when an inbound client frame cannot be parsed
	ErrInvalidFrame = "invalid_frame"

	// ErrUnknownSession is returned when an operation names a session that does not exist
	ErrUnknownSession = "unknown_session"

	// ErrSpawnFailed is returned when a pseudo-terminal child process cannot be started
	ErrSpawnFailed = "spawn_failed"

	// ErrNoRuntime is returned when no container runtime is available on the host
	ErrNoRuntime = "no_runtime"

	// ErrPullFailed is returned when a container image cannot be pulled
	ErrPullFailed = "pull_failed"

	// ErrCreateFailed is returned when a container cannot be created or started
	ErrCreateFailed = "create_failed"

	// ErrExecFailed is returned when an exec into a container cannot be set up
	ErrExecFailed = "exec_failed"

	// ErrStopFailed is returned when a container cannot be stopped
	ErrStopFailed = "stop_failed"

	// ErrUnreachableHost is returned when a remote host cannot be reached
	ErrUnreachableHost = "unreachable_host"

	// ErrAuthFailed is returned when remote authentication is rejected
	ErrAuthFailed = "auth_failed"

	// ErrTransport is returned when an established remote transport fails
	ErrTransport = "transport_error"

	// ErrRemoteOpenFailed is returned when a shell channel cannot be opened on a transport
	ErrRemoteOpenFailed = "remote_open_failed"

	// ErrPersistFailed is returned when a catalog file cannot be written
	ErrPersistFailed = "persist_failed"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidFrameError creates a new invalid frame error
func NewInvalidFrameError(message string, cause error) *Error {
	return NewError(ErrInvalidFrame, message, cause)
}

// NewUnknownSessionError creates a new unknown session error
func NewUnknownSessionError(message string, cause error) *Error {
	return NewError(ErrUnknownSession, message, cause)
}

// NewSpawnFailedError creates a new spawn failed error
func NewSpawnFailedError(message string, cause error) *Error {
	return NewError(ErrSpawnFailed, message, cause)
}

// NewNoRuntimeError creates a new no runtime error
func NewNoRuntimeError(message string, cause error) *Error {
	return NewError(ErrNoRuntime, message, cause)
}

// NewPullFailedError creates a new pull failed error
func NewPullFailedError(message string, cause error) *Error {
	return NewError(ErrPullFailed, message, cause)
}

// NewCreateFailedError creates a new create failed error
func NewCreateFailedError(message string, cause error) *Error {
	return NewError(ErrCreateFailed, message, cause)
}

// NewExecFailedError creates a new exec failed error
func NewExecFailedError(message string, cause error) *Error {
	return NewError(ErrExecFailed, message, cause)
}

// NewStopFailedError creates a new stop failed error
func NewStopFailedError(message string, cause error) *Error {
	return NewError(ErrStopFailed, message, cause)
}

// NewUnreachableHostError creates a new unreachable host error
func NewUnreachableHostError(message string, cause error) *Error {
	return NewError(ErrUnreachableHost, message, cause)
}

// NewAuthFailedError creates a new auth failed error
func NewAuthFailedError(message string, cause error) *Error {
	return NewError(ErrAuthFailed, message, cause)
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewRemoteOpenFailedError creates a new remote open failed error
func NewRemoteOpenFailedError(message string, cause error) *Error {
	return NewError(ErrRemoteOpenFailed, message, cause)
}

// NewPersistFailedError creates a new persist failed error
func NewPersistFailedError(message string, cause error) *Error {
	return NewError(ErrPersistFailed, message, cause)
}

// IsInvalidFrame checks if the error is an invalid frame error
func IsInvalidFrame(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidFrame
}

// IsUnknownSession checks if the error is an unknown session error
func IsUnknownSession(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUnknownSession
}

// IsSpawnFailed checks if the error is a spawn failed error
func IsSpawnFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrSpawnFailed
}

// IsNoRuntime checks if the error is a no runtime error
func IsNoRuntime(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrNoRuntime
}

// IsPullFailed checks if the error is a pull failed error
func IsPullFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrPullFailed
}

// IsCreateFailed checks if the error is a create failed error
func IsCreateFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrCreateFailed
}

// IsExecFailed checks if the error is an exec failed error
func IsExecFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrExecFailed
}

// IsStopFailed checks if the error is a stop failed error
func IsStopFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrStopFailed
}

// IsUnreachableHost checks if the error is an unreachable host error
func IsUnreachableHost(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUnreachableHost
}

// IsAuthFailed checks if the error is an auth failed error
func IsAuthFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrAuthFailed
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrTransport
}

// IsRemoteOpenFailed checks if the error is a remote open failed error
func IsRemoteOpenFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrRemoteOpenFailed
}

// IsPersistFailed checks if the error is a persist failed error
func IsPersistFailed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrPersistFailed
}
