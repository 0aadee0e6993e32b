package session

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// cwdFunc reports the current working directory of the process with the
// given pid. The default is processCwd; tests substitute a fake.
type cwdFunc func(ctx context.Context, pid int) (string, error)

// processCwd inspects the live process. Detection is best-effort: callers
// fall back to the session's tracked directory when it fails.
func processCwd(ctx context.Context, pid int) (string, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid)) //nolint:gosec // G115: pids fit in int32 on supported platforms
	if err != nil {
		return "", err
	}
	return proc.CwdWithContext(ctx)
}
