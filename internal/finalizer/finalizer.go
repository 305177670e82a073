// Package finalizer drains provisional recording files into their finalized
// names once the stability probe clears them.
package finalizer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"streamhalt/internal/logging"
	"streamhalt/internal/services"
	"streamhalt/internal/stability"
	"streamhalt/internal/streamenv"
)

// ProvisionalPrefix marks files still being written by a producer.
const ProvisionalPrefix = "temp_"

// mediaKinds are processed in order: video first, then subtitles.
var mediaKinds = []string{".mp4", ".srt"}

// Action records what happened to one provisional file during a drain.
type Action struct {
	Name    string
	Final   string // finalized name, set only when renamed
	Outcome stability.Outcome
	Err     error
}

// Report summarizes one stream's drain.
type Report struct {
	Stream          int
	Finalized       int
	PendingBusy     int
	PendingUnstable int
	Failed          int
	Actions         []Action
}

// Pending returns true when any file was left provisional for a later pass.
func (r Report) Pending() bool {
	return r.PendingBusy+r.PendingUnstable+r.Failed > 0
}

// Finalizer renames stable provisional files in place, stripping the prefix.
type Finalizer struct {
	probe  *stability.Probe
	logger *slog.Logger
}

// New constructs a finalizer around the given stability probe.
func New(probe *stability.Probe, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "finalizer"),
	}
}

// Drain processes every provisional file in the stream's temporary directory,
// video first, then subtitles. Failures are per-file: a busy or unstable file
// is reported pending and retried by the next run; nothing aborts the batch.
func (f *Finalizer) Drain(ctx context.Context, stream streamenv.Stream) Report {
	report := Report{Stream: stream.Index}

	if _, err := os.Stat(stream.TempDir); errors.Is(err, fs.ErrNotExist) {
		return report
	}

	for _, ext := range mediaKinds {
		names, err := listProvisional(stream.TempDir, ext)
		if err != nil {
			f.logger.Warn("cannot enumerate temp directory",
				logging.Int(logging.FieldStream, stream.Index),
				logging.String("dir", stream.TempDir),
				logging.Error(err))
			continue
		}
		if len(names) == 0 {
			continue
		}
		f.logger.Info("draining provisional files",
			logging.Int(logging.FieldStream, stream.Index),
			logging.String("kind", ext),
			logging.Int("count", len(names)))

		for _, name := range names {
			f.drainOne(ctx, stream, name, &report)
		}
	}

	return report
}

func (f *Finalizer) drainOne(ctx context.Context, stream streamenv.Stream, name string, report *Report) {
	path := filepath.Join(stream.TempDir, name)
	attrs := []logging.Attr{
		logging.Int(logging.FieldStream, stream.Index),
		logging.String("file", name),
	}

	outcome, err := f.probe.Observe(ctx, path)
	if err != nil {
		report.Failed++
		report.Actions = append(report.Actions, Action{Name: name, Outcome: outcome, Err: err})
		f.logger.Warn("stability probe aborted", logging.Args(append(attrs, logging.Error(err))...)...)
		return
	}

	switch outcome {
	case stability.Gone:
		// Already handled by a concurrent actor; nothing to report.
		return
	case stability.Busy:
		report.PendingBusy++
		report.Actions = append(report.Actions, Action{Name: name, Outcome: outcome})
		f.logger.Warn("open handle detected, rename deferred", logging.Args(attrs...)...)
		return
	case stability.Unstable:
		report.PendingUnstable++
		report.Actions = append(report.Actions, Action{Name: name, Outcome: outcome})
		f.logger.Warn("size still changing, rename deferred", logging.Args(attrs...)...)
		return
	}

	finalName := name[len(ProvisionalPrefix):]
	// Same-directory rename: atomic at the filesystem level.
	if err := os.Rename(path, filepath.Join(stream.TempDir, finalName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Vanished between probe and rename; benign.
			return
		}
		report.Failed++
		wrapped := services.Wrap(services.ErrTransient, "finalize", name, "rename failed", err)
		report.Actions = append(report.Actions, Action{Name: name, Outcome: outcome, Err: wrapped})
		f.logger.Error("rename failed", logging.Args(append(attrs, logging.Error(err))...)...)
		return
	}

	report.Finalized++
	report.Actions = append(report.Actions, Action{Name: name, Final: finalName, Outcome: outcome})
	f.logger.Info("finalized", logging.Args(append(attrs, logging.String("final", finalName))...)...)
}

// listProvisional returns provisional base names of one media kind, sorted
// for deterministic processing order.
func listProvisional(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) <= len(ProvisionalPrefix) {
			continue
		}
		if name[:len(ProvisionalPrefix)] != ProvisionalPrefix {
			continue
		}
		if filepath.Ext(name) != ext {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
