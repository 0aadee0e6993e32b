// Package docker provides the Docker backed implementation of the container
// runtime interface, for Docker or compatible runtimes such as Podman.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/termgate/termgate/pkg/container/docker/sdk"
	"github.com/termgate/termgate/pkg/container/runtime"
	"github.com/termgate/termgate/pkg/logger"
)

// containerNamePrefix prefixes every sandbox container name so they are
// recognizable in `docker ps` output and label filters.
const containerNamePrefix = "termgate-sandbox-"

// managedLabel marks containers created by this process
const managedLabel = "termgate"

// stopTimeoutSeconds bounds how long the runtime waits for the sandbox init
// shell before killing it.
const stopTimeoutSeconds = 2

// dockerAPI is the subset of the Docker SDK client used by this package.
// *client.Client satisfies it; tests substitute a fake.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ImageList(ctx context.Context, options dockerimage.ListOptions) ([]dockerimage.Summary, error)
	ImagePull(ctx context.Context, refStr string, options dockerimage.PullOptions) (io.ReadCloser, error)
}

// Client implements the runtime.Runtime interface for sandbox containers
type Client struct {
	runtimeType runtime.Type
	socketPath  string
	api         dockerAPI
}

var _ runtime.Runtime = (*Client)(nil)

// NewClient creates a container client bound to the first reachable runtime,
// probing Podman then Docker.
func NewClient(ctx context.Context) (*Client, error) {
	dockerClient, socketPath, runtimeType, err := sdk.NewDockerClient(ctx)
	if err != nil {
		return nil, runtime.NewContainerError(runtime.ErrRuntimeNotFound, "", err.Error())
	}

	return &Client{
		runtimeType: runtimeType,
		socketPath:  socketPath,
		api:         dockerClient,
	}, nil
}

// Type reports which runtime the client is connected to
func (c *Client) Type() runtime.Type {
	return c.runtimeType
}

// SocketPath returns the socket path the client is bound to
func (c *Client) SocketPath() string {
	return c.socketPath
}

// EnsureImage makes the image available locally, pulling only when missing
func (c *Client) EnsureImage(ctx context.Context, image string) error {
	exists, err := c.ImageExists(ctx, image)
	if err != nil {
		return err
	}
	if exists {
		logger.Debugf("Image %s already present, skipping pull", image)
		return nil
	}
	return c.PullImage(ctx, image)
}

// ImageExists checks if an image exists locally
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	// List images with the specified reference
	filterArgs := filters.NewArgs()
	filterArgs.Add("reference", image)

	images, err := c.api.ImageList(ctx, dockerimage.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}

	return len(images) > 0, nil
}

// PullImage pulls an image from a registry
func (c *Client) PullImage(ctx context.Context, image string) error {
	logger.Infof("Pulling image: %s", image)

	reader, err := c.api.ImagePull(ctx, image, dockerimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Debugf("Failed to close image pull reader: %v", err)
		}
	}()

	// Drain the pull progress stream; an error mid-stream means the pull
	// did not complete.
	if err := parsePullOutput(reader); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}

	return nil
}

// CreateContainer creates and starts an interactive sandbox container for
// the session. The init command is a plain shell kept alive by the allocated
// TTY; the runtime removes the container once it stops.
func (c *Client) CreateContainer(ctx context.Context, sessionID, image string) (string, error) {
	containerName := ContainerName(sessionID)

	config := &container.Config{
		Image:     image,
		Cmd:       []string{"sh"},
		Tty:       true,
		OpenStdin: true,
		Labels: map[string]string{
			managedLabel:                 "true",
			managedLabel + "-session-id": sessionID,
		},
	}
	hostConfig := &container.HostConfig{
		AutoRemove: true,
	}

	resp, err := c.api.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, containerName)
	if err != nil {
		return "", runtime.NewContainerError(err, containerName, fmt.Sprintf("failed to create container: %v", err))
	}

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Remove the half-created container before surfacing the error.
		if rmErr := c.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil && !client.IsErrNotFound(rmErr) {
			logger.Warnf("Failed to remove container %s after start failure: %v", containerName, rmErr)
		}
		return "", runtime.NewContainerError(err, containerName, fmt.Sprintf("failed to start container: %v", err))
	}

	logger.Infof("Created sandbox container %s from image %s", containerName, image)
	return containerName, nil
}

// ExecSpec returns the argv that attaches an interactive shell inside the
// named container when run under a pseudo-terminal.
func (c *Client) ExecSpec(containerName string) []string {
	binary := "docker"
	if c.runtimeType == runtime.TypePodman {
		binary = "podman"
	}
	return []string{binary, "exec", "-it", containerName, "sh"}
}

// StopContainer stops the named container. A container that is already gone,
// including one reaped by auto-removal, is success.
func (c *Client) StopContainer(ctx context.Context, containerName string) error {
	timeout := stopTimeoutSeconds
	err := c.api.ContainerStop(ctx, containerName, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return runtime.NewContainerError(err, containerName, fmt.Sprintf("failed to stop container: %v", err))
	}
	return nil
}

// IsRunning checks whether the named container is currently running
func (c *Client) IsRunning(ctx context.Context, containerName string) (bool, error) {
	info, err := c.api.ContainerInspect(ctx, containerName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, runtime.NewContainerError(runtime.ErrContainerNotFound, containerName, "container not found")
		}
		return false, runtime.NewContainerError(err, containerName, fmt.Sprintf("failed to inspect container: %v", err))
	}

	return info.State != nil && info.State.Running, nil
}

// ContainerName derives the sandbox container name from the session id
func ContainerName(sessionID string) string {
	return containerNamePrefix + sessionID
}

// parsePullOutput consumes the Docker pull progress stream and logs layer
// status lines at debug level.
func parsePullOutput(reader io.Reader) error {
	decoder := json.NewDecoder(reader)
	for {
		var pullStatus struct {
			Status   string `json:"status"`
			ID       string `json:"id,omitempty"`
			Progress string `json:"progress,omitempty"`
			Error    string `json:"error,omitempty"`
		}

		if err := decoder.Decode(&pullStatus); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode pull output: %w", err)
		}

		if pullStatus.Error != "" {
			return fmt.Errorf("pull error: %s", pullStatus.Error)
		}

		if pullStatus.ID != "" {
			logger.Debugf("%s: %s %s", pullStatus.Status, pullStatus.ID, pullStatus.Progress)
		} else {
			logger.Debugf("%s", pullStatus.Status)
		}
	}

	return nil
}
