package stability

import (
	"context"
	"errors"
	"os/exec"
)

// LsofChecker answers open-handle queries by shelling out to lsof.
type LsofChecker struct{}

// InUse reports whether lsof lists any process holding path open. lsof exits
// zero when at least one process has the file open and nonzero otherwise, so
// the exit status is the answer. A missing lsof binary is returned as an
// error so the probe can degrade to size stability alone.
func (LsofChecker) InUse(ctx context.Context, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "lsof", "--", path)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
