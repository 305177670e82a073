// Package procs stops external services identified by invocation patterns.
// There are no structured handles to the producers or the mover service,
// only their command lines, so matching is by substring over the process
// table, abstracted behind Directory so the termination logic is testable
// without a real OS process table.
package procs

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// SignalKind selects the signal delivered to a matched process.
type SignalKind int

const (
	// SignalTerminate requests a graceful stop (SIGTERM).
	SignalTerminate SignalKind = iota
	// SignalKill forcefully terminates (SIGKILL).
	SignalKill
)

func (k SignalKind) String() string {
	if k == SignalKill {
		return "kill"
	}
	return "terminate"
}

// Handle identifies one live process.
type Handle struct {
	PID     int
	Command string
}

// Directory enumerates and signals processes.
type Directory interface {
	// ListMatching returns processes whose command line contains pattern.
	// The calling process itself is never returned.
	ListMatching(ctx context.Context, pattern string) ([]Handle, error)
	Signal(ctx context.Context, h Handle, kind SignalKind) error
}

// systemDirectory reads the real process table via ps and signals via kill.
type systemDirectory struct{}

// NewSystemDirectory returns a Directory backed by the OS process table.
func NewSystemDirectory() Directory {
	return systemDirectory{}
}

func (systemDirectory) ListMatching(ctx context.Context, pattern string) ([]Handle, error) {
	out, err := exec.CommandContext(ctx, "ps", "-e", "-o", "pid=", "-o", "args=").Output()
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	var handles []Handle
	for _, line := range bytes.Split(out, []byte{'\n'}) {
		fields := strings.SplitN(strings.TrimSpace(string(line)), " ", 2)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid == self {
			continue
		}
		args := strings.TrimSpace(fields[1])
		// The ps invocation above matches any pattern containing "ps";
		// never treat the enumerator itself as a target.
		if strings.HasPrefix(args, "ps -e") {
			continue
		}
		if strings.Contains(args, pattern) {
			handles = append(handles, Handle{PID: pid, Command: args})
		}
	}
	return handles, nil
}

func (systemDirectory) Signal(_ context.Context, h Handle, kind SignalKind) error {
	sig := unix.SIGTERM
	if kind == SignalKill {
		sig = unix.SIGKILL
	}
	err := unix.Kill(h.PID, sig)
	if err == unix.ESRCH {
		// Exited on its own between listing and signaling.
		return nil
	}
	return err
}
