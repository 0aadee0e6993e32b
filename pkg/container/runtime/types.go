// Package runtime declares the container runtime surface used for sandbox
// sessions and the types shared by its implementations.
package runtime

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_runtime.go -package=mocks -source=types.go Runtime

// Type represents the type of container runtime
type Type string

const (
	// TypePodman represents the Podman runtime
	TypePodman Type = "podman"
	// TypeDocker represents the Docker runtime
	TypeDocker Type = "docker"
)

// Runtime defines the operations sandbox sessions need from a container
// runtime. Implementations must be safe for concurrent use.
type Runtime interface {
	// Type reports which runtime the adapter is connected to.
	Type() Type

	// EnsureImage makes the image available locally, pulling only when it
	// is not already present.
	EnsureImage(ctx context.Context, image string) error

	// CreateContainer creates and starts an interactive sandbox container
	// for the session and returns the container name. The container is
	// removed by the runtime once it stops.
	CreateContainer(ctx context.Context, sessionID, image string) (string, error)

	// ExecSpec returns the argv that, run under a pseudo-terminal, attaches
	// an interactive shell inside the named container.
	ExecSpec(containerName string) []string

	// StopContainer stops the named container. Stopping a container that is
	// already gone is success.
	StopContainer(ctx context.Context, containerName string) error

	// IsRunning checks whether the named container is currently running.
	IsRunning(ctx context.Context, containerName string) (bool, error)
}
