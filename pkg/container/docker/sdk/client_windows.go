//go:build windows

package sdk

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/docker/docker/client"

	"github.com/termgate/termgate/pkg/container/runtime"
	"github.com/termgate/termgate/pkg/logger"
)

// Windows named pipe paths
const (
	// DockerDesktopWindowsPipePath is the Docker Desktop named pipe path on Windows
	DockerDesktopWindowsPipePath = `\\.\pipe\docker_engine`

	// PodmanDesktopWindowsPipePath is the Podman Desktop named pipe path on Windows
	PodmanDesktopWindowsPipePath = `\\.\pipe\podman-api`
)

// Windows named pipe connection timeout
const pipeConnectionTimeout = 2 * time.Second

// newPlatformClient creates Docker client options using Windows named pipes
func newPlatformClient(pipePath string) (*http.Client, []client.Opt) {
	// Create a custom HTTP client that uses Windows named pipes
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				dialCtx, cancel := context.WithTimeout(ctx, pipeConnectionTimeout)
				defer cancel()
				return winio.DialPipeContext(dialCtx, pipePath)
			},
		},
	}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
		client.WithHost("npipe://" + pipePath),
	}

	return httpClient, opts
}

// findPlatformContainerSocket finds a container socket path on Windows
func findPlatformContainerSocket(rt runtime.Type) (string, runtime.Type, error) {
	// First check for custom pipe paths via environment variables
	if customPipePath := os.Getenv(PodmanSocketEnv); customPipePath != "" {
		logger.Debugf("Using Podman pipe from env: %s", customPipePath)
		if err := checkPipe(customPipePath); err != nil {
			return "", runtime.TypePodman, fmt.Errorf("invalid Podman pipe path: %w", err)
		}
		return customPipePath, runtime.TypePodman, nil
	}

	if customPipePath := os.Getenv(DockerSocketEnv); customPipePath != "" {
		logger.Debugf("Using Docker pipe from env: %s", customPipePath)
		if err := checkPipe(customPipePath); err != nil {
			return "", runtime.TypeDocker, fmt.Errorf("invalid Docker pipe path: %w", err)
		}
		return customPipePath, runtime.TypeDocker, nil
	}

	if rt == runtime.TypePodman {
		if err := checkPipe(PodmanDesktopWindowsPipePath); err == nil {
			logger.Debugf("Found Podman pipe at %s", PodmanDesktopWindowsPipePath)
			return PodmanDesktopWindowsPipePath, runtime.TypePodman, nil
		}
	}

	if rt == runtime.TypeDocker {
		if err := checkPipe(DockerDesktopWindowsPipePath); err == nil {
			logger.Debugf("Found Docker pipe at %s", DockerDesktopWindowsPipePath)
			return DockerDesktopWindowsPipePath, runtime.TypeDocker, nil
		}
	}

	return "", "", runtime.ErrRuntimeNotFound
}

// checkPipe verifies a named pipe accepts connections
func checkPipe(pipePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), pipeConnectionTimeout)
	defer cancel()

	conn, err := winio.DialPipeContext(ctx, pipePath)
	if err != nil {
		return err
	}
	return conn.Close()
}
