// Package sequencer drives the fixed-order shutdown sequence: stop the
// producers, drain their provisional files, sweep finalized files into
// permanent storage, then stop the mover and relay services and clean up
// ephemeral env artifacts. The sequence is best-effort cleanup, not a
// transaction: every step's failure is reported and the next step still runs.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"streamhalt/internal/config"
	"streamhalt/internal/finalizer"
	"streamhalt/internal/journal"
	"streamhalt/internal/logging"
	"streamhalt/internal/procs"
	"streamhalt/internal/services"
	"streamhalt/internal/stability"
	"streamhalt/internal/streamenv"
	"streamhalt/internal/sweeper"
)

// State names one stage of the shutdown sequence.
type State string

const (
	StateIdle               State = "idle"
	StateSignalingProducers State = "signaling_producers"
	StateFinalizingFiles    State = "finalizing_files"
	StateRelocatingFiles    State = "relocating_files"
	StateWaitingMoverDrain  State = "waiting_for_mover_drain"
	StateStoppingMover      State = "stopping_mover"
	StateStoppingRelay      State = "stopping_auxiliary_server"
	StateCleaningConfig     State = "cleaning_ephemeral_config"
	StateDone               State = "done"
)

// ErrAlreadyRunning reports that another shutdown run holds the run lock.
var ErrAlreadyRunning = errors.New("another shutdown run is already in progress")

// StreamDrainer finalizes one stream's provisional files.
type StreamDrainer interface {
	Drain(ctx context.Context, stream streamenv.Stream) finalizer.Report
}

// Relocator performs the bounded sweep of finalized files.
type Relocator interface {
	Run(ctx context.Context) sweeper.Summary
}

// ServiceTerminator stops one external service by pattern identity.
type ServiceTerminator interface {
	Terminate(ctx context.Context, spec procs.Spec) procs.Outcome
}

// Result reports everything one shutdown run did.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Producers procs.Outcome
	Mover     procs.Outcome
	Relay     procs.Outcome

	// SkippedFileStages is true when no producer was found running, so
	// finalization, relocation, and the mover stop were all skipped.
	SkippedFileStages bool

	Finalized   int
	Pending     int
	Relocated   int
	SweepPasses int
	Quiesced    bool

	CleanedEnvFiles []string
	States          []State
}

// Deps carries the collaborators a Sequencer drives. Journal may be nil to
// disable run journaling.
type Deps struct {
	Terminator ServiceTerminator
	Drainer    StreamDrainer
	Sweeper    Relocator
	Resolve    func() []streamenv.Stream
	Journal    *journal.Store
	LockPath   string
	Logger     *slog.Logger
}

// Sequencer owns one shutdown run at a time.
type Sequencer struct {
	cfg    *config.Config
	term   ServiceTerminator
	drain  StreamDrainer
	sweep  Relocator
	lookup func() []streamenv.Stream
	store  *journal.Store

	lockPath string
	logger   *slog.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

// New constructs a sequencer from explicit collaborators.
func New(cfg *config.Config, deps Deps) *Sequencer {
	lockPath := deps.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "streamhalt.lock")
	}
	return &Sequencer{
		cfg:      cfg,
		term:     deps.Terminator,
		drain:    deps.Drainer,
		sweep:    deps.Sweeper,
		lookup:   deps.Resolve,
		store:    deps.Journal,
		lockPath: lockPath,
		logger:   logging.NewComponentLogger(deps.Logger, "sequencer"),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// NewSystem wires a sequencer against the real OS: lsof-backed stability
// probe, process table directory, and filesystem sweeper.
func NewSystem(cfg *config.Config, store *journal.Store, logger *slog.Logger) *Sequencer {
	resolver := streamenv.NewResolver(cfg)
	probe := stability.New(
		time.Duration(cfg.Stability.SampleIntervalSeconds)*time.Second,
		cfg.Stability.MaxSamples,
		cfg.Stability.RequiredStableSamples,
		stability.LsofChecker{},
		logger,
	)
	return New(cfg, Deps{
		Terminator: procs.NewTerminator(procs.NewSystemDirectory(), logger),
		Drainer:    finalizer.New(probe, logger),
		Sweeper: sweeper.New(
			cfg.Sweep.MaxPasses,
			time.Duration(cfg.Sweep.PassIntervalSeconds)*time.Second,
			resolver.ResolveAll,
			logger,
		),
		Resolve:  resolver.ResolveAll,
		Journal:  store,
		LockPath: filepath.Join(filepath.Dir(cfg.Paths.LogDir), "streamhalt.lock"),
		Logger:   logger,
	})
}

// Run executes the whole sequence. The only error it returns is lock
// contention; every in-sequence failure is absorbed into the Result so the
// shutdown always reaches its terminal state.
func (s *Sequencer) Run(ctx context.Context) (Result, error) {
	result := Result{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		States:    []State{StateIdle},
	}
	ctx = services.WithRunID(ctx, result.RunID)
	logger := s.logger.With(logging.String(logging.FieldRunID, result.RunID))

	lock := flock.New(s.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return result, ErrAlreadyRunning
	}
	defer func() {
		_ = lock.Unlock()
	}()

	s.journalBegin(ctx, logger, result)
	logger.Info("shutdown sequence starting",
		logging.Int("streams", s.cfg.Streams.Count),
		logging.String("profile", s.cfg.Streams.Profile))

	s.enter(&result, logger, StateSignalingProducers)
	result.Producers = s.term.Terminate(ctx, procs.Spec{
		Name:          "producers",
		Patterns:      s.cfg.Termination.ProducerPatterns,
		GracePeriod:   time.Duration(s.cfg.Termination.ProducerGraceSeconds) * time.Second,
		CheckInterval: time.Second,
	})

	if result.Producers.Matched == 0 {
		result.SkippedFileStages = true
		logger.Info("no producers running, skipping file stages")
	} else {
		s.enter(&result, logger, StateFinalizingFiles)
		s.finalizeStreams(ctx, logger, &result)

		s.enter(&result, logger, StateRelocatingFiles)
		summary := s.sweep.Run(ctx)
		result.Relocated = summary.Moved
		result.SweepPasses = summary.Passes
		result.Quiesced = summary.Quiesced
		s.journalMoves(ctx, logger, result.RunID, summary)

		s.enter(&result, logger, StateWaitingMoverDrain)
		s.sleep(time.Duration(s.cfg.Termination.MoverDrainSeconds) * time.Second)

		s.enter(&result, logger, StateStoppingMover)
		result.Mover = s.term.Terminate(ctx, procs.Spec{
			Name:          "mover",
			Patterns:      s.cfg.Termination.MoverPatterns,
			GracePeriod:   time.Duration(s.cfg.Termination.MoverGraceSeconds) * time.Second,
			CheckInterval: time.Second,
		})
	}

	// The relay may run independently of any stream; always attempt it.
	s.enter(&result, logger, StateStoppingRelay)
	relayCheck := time.Duration(s.cfg.Termination.RelayCheckSeconds) * time.Second
	result.Relay = s.term.Terminate(ctx, procs.Spec{
		Name:          "relay",
		Patterns:      s.cfg.Termination.RelayPatterns,
		GracePeriod:   relayCheck,
		CheckInterval: relayCheck,
	})

	s.enter(&result, logger, StateCleaningConfig)
	result.CleanedEnvFiles = s.cleanEphemeralConfig(logger)

	s.enter(&result, logger, StateDone)
	result.FinishedAt = s.now()
	s.journalFinish(ctx, logger, result)
	logger.Info("shutdown sequence complete",
		logging.Int("finalized", result.Finalized),
		logging.Int("pending", result.Pending),
		logging.Int("relocated", result.Relocated),
		logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

func (s *Sequencer) enter(result *Result, logger *slog.Logger, state State) {
	result.States = append(result.States, state)
	logger.Info("entering state", logging.String(logging.FieldState, string(state)))
}

// finalizeStreams drains each stream serially. Per-file stability probing
// already polls the filesystem; parallel streams would only multiply that.
func (s *Sequencer) finalizeStreams(ctx context.Context, logger *slog.Logger, result *Result) {
	for _, stream := range s.lookup() {
		report := s.drain.Drain(ctx, stream)
		result.Finalized += report.Finalized
		result.Pending += report.PendingBusy + report.PendingUnstable + report.Failed
		s.journalActions(ctx, logger, result.RunID, report)
	}
}

// cleanEphemeralConfig removes the per-stream .env.temp files and the
// combined .env artifact left behind by the launcher.
func (s *Sequencer) cleanEphemeralConfig(logger *slog.Logger) []string {
	var names []string
	for i := 1; i <= s.cfg.Streams.Count; i++ {
		names = append(names, fmt.Sprintf(".env.temp%d", i))
	}
	names = append(names, ".env")

	var cleaned []string
	for _, name := range names {
		path := filepath.Join(s.cfg.Paths.RuntimeDir, name)
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warn("cannot remove ephemeral config",
				logging.String("file", name),
				logging.Error(err))
			continue
		}
		cleaned = append(cleaned, name)
		logger.Info("removed ephemeral config", logging.String("file", name))
	}
	return cleaned
}

func (s *Sequencer) journalBegin(ctx context.Context, logger *slog.Logger, result Result) {
	if s.store == nil {
		return
	}
	if err := s.store.BeginRun(ctx, result.RunID, result.StartedAt); err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}

func (s *Sequencer) journalActions(ctx context.Context, logger *slog.Logger, runID string, report finalizer.Report) {
	if s.store == nil {
		return
	}
	for _, action := range report.Actions {
		event := journal.FileEvent{
			RunID:  runID,
			Stream: report.Stream,
			Name:   action.Name,
			Action: "pending",
			Detail: action.Outcome.String(),
		}
		if action.Final != "" {
			event.Action = "finalized"
			event.Detail = action.Final
		} else if action.Err != nil {
			event.Action = "failed"
			event.Detail = action.Err.Error()
		}
		if err := s.store.RecordFileEvent(ctx, event); err != nil {
			logger.Warn("journal write failed", logging.Error(err))
			return
		}
	}
}

func (s *Sequencer) journalMoves(ctx context.Context, logger *slog.Logger, runID string, summary sweeper.Summary) {
	if s.store == nil {
		return
	}
	for _, move := range summary.Moves {
		event := journal.FileEvent{
			RunID:  runID,
			Stream: move.Stream,
			Name:   move.Name,
			Action: "relocated",
			Detail: move.Dest,
		}
		if err := s.store.RecordFileEvent(ctx, event); err != nil {
			logger.Warn("journal write failed", logging.Error(err))
			return
		}
	}
}

func (s *Sequencer) journalFinish(ctx context.Context, logger *slog.Logger, result Result) {
	if s.store == nil {
		return
	}
	outcome := "done"
	if result.Pending > 0 || !result.Producers.Stopped || !result.Relay.Stopped {
		outcome = "done_with_pending"
	}
	if !result.SkippedFileStages && !result.Mover.Stopped {
		outcome = "done_with_pending"
	}
	err := s.store.FinishRun(ctx, journal.Run{
		ID:               result.RunID,
		FinishedAt:       result.FinishedAt,
		ProducersStopped: result.Producers.Matched,
		FilesFinalized:   result.Finalized,
		FilesRelocated:   result.Relocated,
		Outcome:          outcome,
	})
	if err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}
