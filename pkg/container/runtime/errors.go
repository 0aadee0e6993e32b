package runtime

import (
	"errors"
	"fmt"
)

// Error types for container operations
var (
	// ErrRuntimeNotFound is returned when no container runtime (Podman or
	// Docker) is available on the system or none can be reached.
	ErrRuntimeNotFound = fmt.Errorf("container runtime not found")

	// ErrContainerNotFound is returned when attempting to operate on a
	// container that does not exist in the runtime.
	ErrContainerNotFound = fmt.Errorf("container not found")

	// ErrContainerNotRunning is returned when an operation requires a
	// running container (e.g. attaching another shell to a sandbox).
	ErrContainerNotRunning = fmt.Errorf("container not running")
)

// ContainerError represents an error related to container operations
type ContainerError struct {
	// Err is the underlying error
	Err error
	// ContainerID is the ID or name of the container
	ContainerID string
	// Message is an optional error message
	Message string
}

// Error returns the error message
func (e *ContainerError) Error() string {
	if e.Message != "" {
		if e.ContainerID != "" {
			return fmt.Sprintf("%s: %s (container: %s)", e.Err, e.Message, e.ContainerID)
		}
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}

	if e.ContainerID != "" {
		return fmt.Sprintf("%s (container: %s)", e.Err, e.ContainerID)
	}

	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ContainerError) Unwrap() error {
	return e.Err
}

// NewContainerError creates a new container error
func NewContainerError(err error, containerID, message string) *ContainerError {
	return &ContainerError{
		Err:         err,
		ContainerID: containerID,
		Message:     message,
	}
}

// IsContainerNotFound checks if the error is a container not found error
func IsContainerNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound)
}

// IsRuntimeNotFound checks if the error is a runtime not found error
func IsRuntimeNotFound(err error) bool {
	return errors.Is(err, ErrRuntimeNotFound)
}
