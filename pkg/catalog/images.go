// Package catalog implements the two small persisted catalogs the gateway
// keeps across restarts: remembered container images and remembered SSH
// connection parameters. Both are advisory; losing them degrades convenience,
// not correctness.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/termgate/termgate/pkg/errors"
	"github.com/termgate/termgate/pkg/state"
)

const (
	// imagesDoc is the state document holding the remembered image list
	imagesDoc = "images"

	// lockTimeout is the maximum time to wait for a catalog file lock
	lockTimeout = 1 * time.Second

	// lockRetryInterval is the polling interval while waiting for the lock
	lockRetryInterval = 100 * time.Millisecond
)

// ErrInvalidImageRef is returned when an image reference fails validation.
var ErrInvalidImageRef = fmt.Errorf("invalid image reference")

// ImageCatalog persists the ordered set of container images the user has run
// sandboxes from, most recent first.
type ImageCatalog struct {
	store state.Store
	mu    sync.Mutex
}

// NewImageCatalog creates an image catalog backed by the given store.
func NewImageCatalog(store state.Store) *ImageCatalog {
	return &ImageCatalog{store: store}
}

// List returns the remembered images, most recent first. A missing document
// yields an empty list.
func (c *ImageCatalog) List(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Add validates the image reference, moves it to the front of the list and
// persists the result. Re-adding an existing image only changes its position.
func (c *ImageCatalog) Add(ctx context.Context, image string) ([]string, error) {
	if _, err := name.ParseReference(image); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidImageRef, image, err)
	}

	var updated []string
	err := c.withLock(ctx, func() error {
		images, err := c.load(ctx)
		if err != nil {
			return err
		}
		updated = append([]string{image}, remove(images, image)...)
		return c.save(ctx, updated)
	})
	return updated, err
}

// Remove deletes the image from the list and persists the result. Removing an
// unknown image is a no-op.
func (c *ImageCatalog) Remove(ctx context.Context, image string) ([]string, error) {
	var updated []string
	err := c.withLock(ctx, func() error {
		images, err := c.load(ctx)
		if err != nil {
			return err
		}
		updated = remove(images, image)
		return c.save(ctx, updated)
	})
	return updated, err
}

// withLock serializes read-modify-write cycles against other processes via a
// lock file next to the document, and against other goroutines via the mutex.
func (c *ImageCatalog) withLock(ctx context.Context, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fileLock := flock.New(c.store.LockPath(imagesDoc))
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return errors.NewPersistFailedError("failed to acquire image catalog lock", err)
	}
	if !locked {
		return errors.NewPersistFailedError(fmt.Sprintf("image catalog lock timeout after %v", lockTimeout), nil)
	}
	defer fileLock.Unlock()

	return fn()
}

func (c *ImageCatalog) load(ctx context.Context) ([]string, error) {
	exists, err := c.store.Exists(ctx, imagesDoc)
	if err != nil {
		return nil, errors.NewPersistFailedError("failed to check image catalog", err)
	}
	if !exists {
		return []string{}, nil
	}

	r, err := c.store.GetReader(ctx, imagesDoc)
	if err != nil {
		return nil, errors.NewPersistFailedError("failed to open image catalog", err)
	}
	defer r.Close()

	var images []string
	if err := json.NewDecoder(r).Decode(&images); err != nil {
		return nil, errors.NewPersistFailedError("failed to parse image catalog", err)
	}
	return images, nil
}

func (c *ImageCatalog) save(ctx context.Context, images []string) error {
	w, err := c.store.GetWriter(ctx, imagesDoc)
	if err != nil {
		return errors.NewPersistFailedError("failed to open image catalog for writing", err)
	}
	defer w.Close()

	if err := json.NewEncoder(w).Encode(images); err != nil {
		return errors.NewPersistFailedError("failed to write image catalog", err)
	}
	return nil
}

// remove returns the list without any occurrence of image.
func remove(images []string, image string) []string {
	out := make([]string, 0, len(images))
	for _, i := range images {
		if i != image {
			out = append(out, i)
		}
	}
	return out
}
