package procs

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"streamhalt/internal/logging"
	"streamhalt/internal/services"
)

// Spec names one logical service and the patterns matching its invocation
// forms (direct and wrapped invocations of the same service all get
// signaled).
type Spec struct {
	Name          string
	Patterns      []string
	GracePeriod   time.Duration
	CheckInterval time.Duration
}

// Outcome reports how termination of one service went.
type Outcome struct {
	Service string
	// Matched is the number of distinct processes found at the start.
	Matched int
	// Stopped is true when no matching process remained, gracefully or not.
	Stopped bool
	// Escalated is true when the grace period expired and SIGKILL was sent.
	Escalated bool
	// Remaining lists PIDs still alive after escalation.
	Remaining []int
	// Err tags an unresponsive service; it is reported, never fatal.
	Err error
}

// Terminator signals services and waits out their grace periods.
type Terminator struct {
	dir    Directory
	logger *slog.Logger

	sleep func(time.Duration)
}

// NewTerminator constructs a terminator over the given process directory.
func NewTerminator(dir Directory, logger *slog.Logger) *Terminator {
	return &Terminator{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "procs"),
		sleep:  time.Sleep,
	}
}

// Terminate signals every process matching the spec, polls for absence at the
// check interval up to the grace period, and escalates to SIGKILL for any
// survivor. Every wait loop is iteration-bounded; the call returns no later
// than the grace period plus one check cycle.
func (t *Terminator) Terminate(ctx context.Context, spec Spec) Outcome {
	outcome := Outcome{Service: spec.Name}

	matches := t.listAll(ctx, spec.Patterns)
	outcome.Matched = len(matches)
	if len(matches) == 0 {
		t.logger.Info("service not running", logging.String("service", spec.Name))
		outcome.Stopped = true
		return outcome
	}

	t.logger.Info("signaling service",
		logging.String("service", spec.Name),
		logging.Int("processes", len(matches)),
		logging.Duration("grace", spec.GracePeriod))
	t.signalAll(ctx, matches, SignalTerminate)

	interval := spec.CheckInterval
	if interval <= 0 {
		interval = time.Second
	}
	cycles := int(spec.GracePeriod / interval)
	for cycle := 0; cycle < cycles; cycle++ {
		t.sleep(interval)
		matches = t.listAll(ctx, spec.Patterns)
		if len(matches) == 0 {
			t.logger.Info("service stopped gracefully", logging.String("service", spec.Name))
			outcome.Stopped = true
			return outcome
		}
		t.logger.Debug("waiting for service exit",
			logging.String("service", spec.Name),
			logging.Int("cycle", cycle+1),
			logging.Int("cycles", cycles),
			logging.Int("remaining", len(matches)))
	}

	outcome.Escalated = true
	t.logger.Warn("grace period expired, escalating",
		logging.String("service", spec.Name),
		logging.Int("remaining", len(matches)))
	t.signalAll(ctx, matches, SignalKill)

	t.sleep(interval)
	matches = t.listAll(ctx, spec.Patterns)
	if len(matches) == 0 {
		outcome.Stopped = true
		return outcome
	}

	for _, h := range matches {
		outcome.Remaining = append(outcome.Remaining, h.PID)
	}
	sort.Ints(outcome.Remaining)
	outcome.Err = services.Wrap(services.ErrUnresponsive, "terminate", spec.Name,
		"survived forceful termination", nil)
	t.logger.Error("service survived forceful termination",
		logging.String("service", spec.Name),
		logging.Any("pids", outcome.Remaining))
	return outcome
}

// listAll gathers matches across all patterns, deduplicated by PID.
func (t *Terminator) listAll(ctx context.Context, patterns []string) []Handle {
	seen := map[int]struct{}{}
	var handles []Handle
	for _, pattern := range patterns {
		matches, err := t.dir.ListMatching(ctx, pattern)
		if err != nil {
			t.logger.Warn("process listing failed",
				logging.String("pattern", pattern),
				logging.Error(err))
			continue
		}
		for _, h := range matches {
			if _, dup := seen[h.PID]; dup {
				continue
			}
			seen[h.PID] = struct{}{}
			handles = append(handles, h)
		}
	}
	return handles
}

func (t *Terminator) signalAll(ctx context.Context, handles []Handle, kind SignalKind) {
	for _, h := range handles {
		if err := t.dir.Signal(ctx, h, kind); err != nil {
			t.logger.Warn("signal failed",
				logging.Int("pid", h.PID),
				logging.String("signal", kind.String()),
				logging.Error(err))
		}
	}
}
