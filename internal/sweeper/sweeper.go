// Package sweeper relocates finalized recording files into the permanent
// timestamp-partitioned hierarchy. It is the bounded, poll-based closer run
// at shutdown time: the companion mover service that normally does this
// asynchronously may already be mid-shutdown, so the sweep must finish the
// job on its own and tolerate racing against it.
package sweeper

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"streamhalt/internal/finalizer"
	"streamhalt/internal/logging"
	"streamhalt/internal/stamp"
	"streamhalt/internal/streamenv"
)

// Move describes one completed relocation.
type Move struct {
	Stream int
	Name   string
	Dest   string
}

// Summary reports the outcome of a sweep run.
type Summary struct {
	Passes  int
	Moved   int
	Moves   []Move
	Skipped []string // finalized names with no timestamp token, reported once
	// Quiesced is true when the run stopped because a pass moved nothing,
	// rather than hitting the pass bound.
	Quiesced bool
}

// Sweeper scans every stream's temporary directory and moves eligible files.
type Sweeper struct {
	maxPasses int
	interval  time.Duration
	resolve   func() []streamenv.Stream
	logger    *slog.Logger

	sleep func(time.Duration)
}

// New constructs a sweeper. resolve is called at the start of every pass so
// stream configuration is re-read rather than cached for the whole run.
func New(maxPasses int, interval time.Duration, resolve func() []streamenv.Stream, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		maxPasses: maxPasses,
		interval:  interval,
		resolve:   resolve,
		logger:    logging.NewComponentLogger(logger, "sweeper"),
		sleep:     time.Sleep,
	}
}

// Run performs up to maxPasses sweep passes, stopping early once a pass
// produces zero moves. Per-file failures are logged and skipped; the run
// itself never fails.
func (s *Sweeper) Run(ctx context.Context) Summary {
	summary := Summary{}
	reported := map[string]struct{}{}

	for pass := 1; pass <= s.maxPasses; pass++ {
		summary.Passes = pass
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sweep interrupted", logging.Error(err))
			return summary
		}

		moved := s.pass(ctx, &summary, reported)
		if moved == 0 {
			summary.Quiesced = true
			s.logger.Info("sweep quiescent",
				logging.Int("pass", pass),
				logging.Int("max_passes", s.maxPasses))
			return summary
		}

		s.logger.Info("sweep pass moved files",
			logging.Int("pass", pass),
			logging.Int("max_passes", s.maxPasses),
			logging.Int("moved", moved))
		if pass < s.maxPasses {
			s.sleep(s.interval)
		}
	}

	return summary
}

func (s *Sweeper) pass(ctx context.Context, summary *Summary, reported map[string]struct{}) int {
	moved := 0
	for _, stream := range s.resolve() {
		moved += s.sweepStream(ctx, stream, summary, reported)
	}
	return moved
}

func (s *Sweeper) sweepStream(ctx context.Context, stream streamenv.Stream, summary *Summary, reported map[string]struct{}) int {
	entries, err := os.ReadDir(stream.TempDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot enumerate temp directory",
				logging.Int(logging.FieldStream, stream.Index),
				logging.String("dir", stream.TempDir),
				logging.Error(err))
		}
		return 0
	}

	moved := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return moved
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, finalizer.ProvisionalPrefix) {
			continue
		}

		token, ok := stamp.Parse(name)
		if !ok {
			key := filepath.Join(stream.TempDir, name)
			if _, seen := reported[key]; !seen {
				reported[key] = struct{}{}
				// Only names ending in a recording timestamp are
				// candidates at all; report foreign media files once.
				if ext := filepath.Ext(name); ext == ".mp4" || ext == ".srt" {
					summary.Skipped = append(summary.Skipped, name)
					s.logger.Warn("no timestamp token, leaving in place",
						logging.Int(logging.FieldStream, stream.Index),
						logging.String("file", name))
				}
			}
			continue
		}

		destDir := token.PartitionDir(stream.FinalDir)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			s.logger.Error("cannot create destination directory",
				logging.Int(logging.FieldStream, stream.Index),
				logging.String("dir", destDir),
				logging.Error(err))
			continue
		}

		src := filepath.Join(stream.TempDir, name)
		dest := filepath.Join(destDir, name)
		if err := moveFile(src, dest); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Already moved by the companion mover between the
				// directory read and the rename; silent success.
				continue
			}
			s.logger.Error("move failed",
				logging.Int(logging.FieldStream, stream.Index),
				logging.String("file", name),
				logging.Error(err))
			continue
		}

		moved++
		summary.Moved++
		summary.Moves = append(summary.Moves, Move{Stream: stream.Index, Name: name, Dest: dest})
		s.logger.Info("relocated",
			logging.Int(logging.FieldStream, stream.Index),
			logging.String("file", name),
			logging.String("dest", destDir))
	}
	return moved
}

// moveFile renames src to dest, falling back to copy+remove when the
// permanent storage root lives on a different device.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if copyErr := copyFile(src, dest); copyErr != nil {
			return copyErr
		}
		return os.Remove(src)
	}
	return err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
