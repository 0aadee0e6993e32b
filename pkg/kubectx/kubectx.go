// Package kubectx lists the kubectl contexts configured on the host, for
// clients that want to start a shell with a context preselected.
package kubectx

import (
	"context"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"

	"github.com/termgate/termgate/pkg/logger"
)

// kubectlTimeout bounds the config read; kubectl only touches local files.
const kubectlTimeout = 5 * time.Second

// Lister reads context names through the host's kubectl binary. Shelling out
// inherits kubectl's own KUBECONFIG merging rules instead of re-implementing
// them.
type Lister struct {
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLister creates a lister backed by the kubectl binary on PATH.
func NewLister() *Lister {
	return &Lister{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// List returns the configured context names. A host without kubectl has no
// contexts; that is an empty result, not an error.
func (l *Lister) List(ctx context.Context) ([]string, error) {
	path, err := l.lookPath("kubectl")
	if err != nil {
		logger.Debugf("kubectl not on PATH: %v", err)
		return []string{}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, kubectlTimeout)
	defer cancel()
	out, err := l.run(cctx, path, "config", "view", "-o", "json")
	if err != nil {
		return nil, err
	}

	contexts := []string{}
	for _, name := range gjson.GetBytes(out, "contexts.#.name").Array() {
		if name.String() != "" {
			contexts = append(contexts, name.String())
		}
	}
	return contexts, nil
}
