// Package stability decides whether a growing recording file has stopped
// being written to. There is no completion signal from the producer, so the
// probe combines bounded size sampling with an open-handle check.
package stability

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"streamhalt/internal/logging"
)

// Outcome classifies one stabilization attempt.
type Outcome int

const (
	// Stable means the size held still and no writer holds the file open.
	Stable Outcome = iota
	// Unstable means the sample bound was exhausted without a stable streak.
	Unstable
	// Busy means the size was stable but a process still holds the file
	// open; writers that pre-allocate length would otherwise be falsely
	// finalized.
	Busy
	// Gone means the file vanished mid-probe, most likely already picked
	// up by the companion mover. Callers treat this as a no-op.
	Gone
)

func (o Outcome) String() string {
	switch o {
	case Stable:
		return "stable"
	case Unstable:
		return "unstable"
	case Busy:
		return "busy"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}

// HandleChecker reports whether any process holds the file open.
type HandleChecker interface {
	InUse(ctx context.Context, path string) (bool, error)
}

// Probe samples a file's size at a fixed interval until it either holds
// still for the required streak or the sample bound is exhausted.
type Probe struct {
	interval       time.Duration
	maxSamples     int
	requiredStreak int
	handles        HandleChecker
	logger         *slog.Logger

	sleep func(time.Duration)
}

// New constructs a probe. handles may be nil, in which case size stability
// alone authorizes finalization (degraded guarantee).
func New(interval time.Duration, maxSamples, requiredStreak int, handles HandleChecker, logger *slog.Logger) *Probe {
	return &Probe{
		interval:       interval,
		maxSamples:     maxSamples,
		requiredStreak: requiredStreak,
		handles:        handles,
		logger:         logging.NewComponentLogger(logger, "stability"),
		sleep:          time.Sleep,
	}
}

// Observe watches path until it is declared stable, unstable, busy, or gone.
//
// The open-handle check and any subsequent rename by the caller are not
// atomic together: a writer could reopen the file in between. That window is
// an accepted limitation of the design, not something this probe closes.
func (p *Probe) Observe(ctx context.Context, path string) (Outcome, error) {
	prevSize := int64(-1)
	streak := 0
	stable := false

	for sample := 0; sample < p.maxSamples; sample++ {
		if err := ctx.Err(); err != nil {
			return Unstable, err
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Gone, nil
			}
			p.logger.Debug("stat failed during probe", logging.String("path", path), logging.Error(err))
			return Unstable, nil
		}

		size := info.Size()
		if size == prevSize && prevSize >= 0 {
			streak++
			if streak >= p.requiredStreak {
				stable = true
				break
			}
		} else {
			streak = 0
			prevSize = size
		}

		p.sleep(p.interval)
	}

	if !stable {
		return Unstable, nil
	}

	if p.handles == nil {
		return Stable, nil
	}
	inUse, err := p.handles.InUse(ctx, path)
	if err != nil {
		// Checker unavailable: accept size stability alone.
		p.logger.Debug("open-handle check unavailable", logging.String("path", path), logging.Error(err))
		return Stable, nil
	}
	if inUse {
		return Busy, nil
	}
	return Stable, nil
}
