package sweeper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamhalt/internal/streamenv"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixedStreams(streams ...streamenv.Stream) func() []streamenv.Stream {
	return func() []streamenv.Stream { return streams }
}

func newTestSweeper(maxPasses int, resolve func() []streamenv.Stream) *Sweeper {
	s := New(maxPasses, time.Second, resolve, nil)
	s.sleep = func(time.Duration) {}
	return s
}

func TestRunRelocatesByTimestamp(t *testing.T) {
	temp := t.TempDir()
	final := t.TempDir()
	writeFile(t, temp, "cam1_250131_235959.mp4")
	writeFile(t, temp, "cam1_250131_235959.srt")
	writeFile(t, temp, "temp_cam1_still_writing.mp4")

	s := newTestSweeper(20, fixedStreams(streamenv.Stream{Index: 1, TempDir: temp, FinalDir: final}))
	summary := s.Run(context.Background())

	if summary.Moved != 2 {
		t.Fatalf("moved = %d, want 2", summary.Moved)
	}
	if !summary.Quiesced {
		t.Fatal("expected quiescence after everything moved")
	}
	for _, name := range []string{"cam1_250131_235959.mp4", "cam1_250131_235959.srt"} {
		dest := filepath.Join(final, "2025", "01", "31", "23", name)
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("expected %s at destination: %v", name, err)
		}
	}
	// Provisional files are never swept.
	if _, err := os.Stat(filepath.Join(temp, "temp_cam1_still_writing.mp4")); err != nil {
		t.Errorf("provisional file must stay put: %v", err)
	}
}

func TestRunLeavesUnstampedFiles(t *testing.T) {
	temp := t.TempDir()
	final := t.TempDir()
	writeFile(t, temp, "notes.mp4")

	s := newTestSweeper(20, fixedStreams(streamenv.Stream{Index: 1, TempDir: temp, FinalDir: final}))
	summary := s.Run(context.Background())

	if summary.Moved != 0 {
		t.Fatalf("moved = %d, want 0", summary.Moved)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0] != "notes.mp4" {
		t.Fatalf("skipped = %v, want [notes.mp4]", summary.Skipped)
	}
	if _, err := os.Stat(filepath.Join(temp, "notes.mp4")); err != nil {
		t.Fatalf("unstamped file must stay put: %v", err)
	}
}

func TestRunIdempotentSecondRun(t *testing.T) {
	temp := t.TempDir()
	final := t.TempDir()
	writeFile(t, temp, "cam1_250101_010000.mp4")

	resolve := fixedStreams(streamenv.Stream{Index: 1, TempDir: temp, FinalDir: final})
	first := newTestSweeper(20, resolve).Run(context.Background())
	if first.Moved != 1 {
		t.Fatalf("first run moved = %d, want 1", first.Moved)
	}

	second := newTestSweeper(20, resolve).Run(context.Background())
	if second.Moved != 0 {
		t.Fatalf("second run moved = %d, want 0", second.Moved)
	}
	if second.Passes != 1 || !second.Quiesced {
		t.Fatalf("second run should quiesce in one pass, got %+v", second)
	}
}

func TestRunBoundedWhenFilesKeepAppearing(t *testing.T) {
	temp := t.TempDir()
	final := t.TempDir()

	const maxPasses = 5
	counter := 0
	resolve := func() []streamenv.Stream {
		// A generator that plants a fresh relocatable file before every
		// pass; the run must stop at the bound, not loop forever.
		counter++
		writeFile(t, temp, fmt.Sprintf("cam1_25010%d_010000.mp4", counter%10))
		return []streamenv.Stream{{Index: 1, TempDir: temp, FinalDir: final}}
	}

	summary := newTestSweeper(maxPasses, resolve).Run(context.Background())
	if summary.Passes != maxPasses {
		t.Fatalf("passes = %d, want %d", summary.Passes, maxPasses)
	}
	if summary.Quiesced {
		t.Fatal("run should have hit the bound, not quiesced")
	}
}

func TestRunMissingTempDir(t *testing.T) {
	s := newTestSweeper(20, fixedStreams(streamenv.Stream{
		Index:    1,
		TempDir:  filepath.Join(t.TempDir(), "missing"),
		FinalDir: t.TempDir(),
	}))
	summary := s.Run(context.Background())
	if summary.Moved != 0 || !summary.Quiesced {
		t.Fatalf("missing dir should quiesce immediately, got %+v", summary)
	}
}

func TestRunReResolvesStreamsEachPass(t *testing.T) {
	tempA := t.TempDir()
	tempB := t.TempDir()
	final := t.TempDir()
	writeFile(t, tempA, "cam1_250101_010000.mp4")
	writeFile(t, tempB, "cam1_250102_010000.mp4")

	calls := 0
	resolve := func() []streamenv.Stream {
		calls++
		dir := tempA
		if calls > 1 {
			dir = tempB
		}
		return []streamenv.Stream{{Index: 1, TempDir: dir, FinalDir: final}}
	}

	summary := newTestSweeper(20, resolve).Run(context.Background())
	if summary.Moved != 2 {
		t.Fatalf("moved = %d, want 2 (config change between passes must be honored)", summary.Moved)
	}
}
