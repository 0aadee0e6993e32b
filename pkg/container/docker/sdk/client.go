// Package sdk creates Docker API clients bound to whichever container
// runtime socket is present on the host, probing Podman before Docker.
package sdk

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"github.com/termgate/termgate/pkg/container/runtime"
	"github.com/termgate/termgate/pkg/logger"
)

// Common socket paths
const (
	// PodmanSocketPath is the default Podman socket path
	PodmanSocketPath = "/var/run/podman/podman.sock"
	// PodmanXDGRuntimeSocketPath is the XDG runtime Podman socket path
	PodmanXDGRuntimeSocketPath = "podman/podman.sock"
	// DockerSocketPath is the default Docker socket path
	DockerSocketPath = "/var/run/docker.sock"
	// DockerDesktopMacSocketPath is the Docker Desktop socket path on macOS
	DockerDesktopMacSocketPath = ".docker/run/docker.sock"
	// RancherDesktopMacSocketPath is the Rancher Desktop socket path on macOS
	RancherDesktopMacSocketPath = ".rd/docker.sock"
)

// Environment variable names
const (
	// DockerSocketEnv is the environment variable for a custom Docker socket path
	DockerSocketEnv = "TERMGATE_DOCKER_SOCKET"
	// PodmanSocketEnv is the environment variable for a custom Podman socket path
	PodmanSocketEnv = "TERMGATE_PODMAN_SOCKET"
)

// supportedSocketPaths is the probe order; Podman is preferred over Docker.
var supportedSocketPaths = []runtime.Type{runtime.TypePodman, runtime.TypeDocker}

// NewDockerClient creates a Docker API client for the first reachable
// container runtime. It returns the client, the socket path it is bound to
// and the detected runtime type.
func NewDockerClient(ctx context.Context) (*client.Client, string, runtime.Type, error) {
	var lastErr error

	// Try to find a container socket for each supported runtime in order.
	// Once a socket is found, create a client and ping the runtime; if the
	// ping fails, move on to the next runtime.
	for _, sp := range supportedSocketPaths {
		socketPath, runtimeType, err := findPlatformContainerSocket(sp)
		if err != nil {
			logger.Debugf("Failed to find socket for %s: %v", sp, err)
			lastErr = err
			continue
		}

		dockerClient, err := newDockerClient(ctx, socketPath)
		if err != nil {
			logger.Debugf("Failed to create client for %s: %v", sp, err)
			lastErr = err
			continue
		}

		logger.Debugf("Successfully connected to %s runtime at %s", runtimeType, socketPath)
		return dockerClient, socketPath, runtimeType, nil
	}

	if lastErr != nil {
		return nil, "", "", fmt.Errorf("no supported container runtime available: %w", lastErr)
	}
	return nil, "", "", runtime.ErrRuntimeNotFound
}

// newDockerClient creates a Docker API client for the given socket path and
// verifies the runtime behind it responds.
func newDockerClient(ctx context.Context, socketPath string) (*client.Client, error) {
	_, opts := newPlatformClient(socketPath)

	dockerClient, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := dockerClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping runtime at %s: %w", socketPath, err)
	}

	return dockerClient, nil
}
