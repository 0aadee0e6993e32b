package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ContainerError
		expected string
	}{
		{
			name: "message and container ID",
			err: &ContainerError{
				Err:         ErrContainerNotRunning,
				ContainerID: "abc123",
				Message:     "cannot attach a shell",
			},
			expected: "container not running: cannot attach a shell (container: abc123)",
		},
		{
			name: "message without container ID",
			err: &ContainerError{
				Err:     ErrRuntimeNotFound,
				Message: "no socket found",
			},
			expected: "container runtime not found: no socket found",
		},
		{
			name: "container ID without message",
			err: &ContainerError{
				Err:         ErrContainerNotFound,
				ContainerID: "def456",
			},
			expected: "container not found (container: def456)",
		},
		{
			name: "bare error only",
			err: &ContainerError{
				Err: ErrContainerNotFound,
			},
			expected: "container not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestContainerError_Unwrap(t *testing.T) {
	t.Parallel()

	underlying := ErrContainerNotRunning
	ce := &ContainerError{
		Err:         underlying,
		ContainerID: "test",
		Message:     "some message",
	}

	// Unwrap should return the underlying error
	assert.Equal(t, underlying, ce.Unwrap())

	// errors.Is should work through Unwrap
	assert.True(t, errors.Is(ce, ErrContainerNotRunning))
	assert.False(t, errors.Is(ce, ErrContainerNotFound))
}

func TestNewContainerError(t *testing.T) {
	t.Parallel()

	ce := NewContainerError(ErrContainerNotFound, "container-1", "was removed externally")

	require.NotNil(t, ce)
	assert.Equal(t, ErrContainerNotFound, ce.Err)
	assert.Equal(t, "container-1", ce.ContainerID)
	assert.Equal(t, "was removed externally", ce.Message)
}

func TestIsContainerNotFound(t *testing.T) {
	t.Parallel()

	t.Run("direct", func(t *testing.T) {
		t.Parallel()
		assert.True(t, IsContainerNotFound(ErrContainerNotFound))
	})

	t.Run("wrapped", func(t *testing.T) {
		t.Parallel()
		err := NewContainerError(ErrContainerNotFound, "cid", "not found")
		assert.True(t, IsContainerNotFound(err))
	})

	t.Run("other error", func(t *testing.T) {
		t.Parallel()
		assert.False(t, IsContainerNotFound(fmt.Errorf("different")))
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.False(t, IsContainerNotFound(nil))
	})
}

func TestIsRuntimeNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRuntimeNotFound(ErrRuntimeNotFound))
	assert.True(t, IsRuntimeNotFound(NewContainerError(ErrRuntimeNotFound, "", "no podman, no docker")))
	assert.False(t, IsRuntimeNotFound(ErrContainerNotFound))
	assert.False(t, IsRuntimeNotFound(nil))
}
