package stability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeChecker struct {
	inUse bool
	err   error
	calls int
}

func (f *fakeChecker) InUse(context.Context, string) (bool, error) {
	f.calls++
	return f.inUse, f.err
}

func newTestProbe(t *testing.T, maxSamples, streak int, handles HandleChecker) *Probe {
	t.Helper()
	p := New(time.Second, maxSamples, streak, handles, nil)
	p.sleep = func(time.Duration) {}
	return p
}

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestObserveStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	checker := &fakeChecker{}
	outcome, err := newTestProbe(t, 15, 3, checker).Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Stable {
		t.Fatalf("outcome = %v, want stable", outcome)
	}
	if checker.calls != 1 {
		t.Fatalf("handle checker called %d times, want 1", checker.calls)
	}
}

func TestObserveBusyWhenHandleOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	outcome, err := newTestProbe(t, 15, 3, &fakeChecker{inUse: true}).Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Busy {
		t.Fatalf("outcome = %v, want busy", outcome)
	}
}

func TestObserveDegradesWhenCheckerUnavailable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	checker := &fakeChecker{err: errors.New("lsof: command not found")}
	outcome, err := newTestProbe(t, 15, 3, checker).Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Stable {
		t.Fatalf("outcome = %v, want stable (degraded)", outcome)
	}
}

func TestObserveUnstableWhenGrowing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	size := 0
	writeSized(t, path, size)

	p := newTestProbe(t, 6, 3, &fakeChecker{})
	p.sleep = func(time.Duration) {
		size += 10
		writeSized(t, path, size)
	}

	outcome, err := p.Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Unstable {
		t.Fatalf("outcome = %v, want unstable", outcome)
	}
}

func TestObserveGoneMidProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	p := newTestProbe(t, 15, 3, &fakeChecker{})
	samples := 0
	p.sleep = func(time.Duration) {
		samples++
		if samples == 2 {
			if err := os.Remove(path); err != nil {
				t.Fatal(err)
			}
		}
	}

	outcome, err := p.Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Gone {
		t.Fatalf("outcome = %v, want gone", outcome)
	}
}

func TestObserveGoneBeforeFirstSample(t *testing.T) {
	outcome, err := newTestProbe(t, 15, 3, nil).Observe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Gone {
		t.Fatalf("outcome = %v, want gone", outcome)
	}
}

func TestObserveBoundedSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	p := newTestProbe(t, 2, 3, nil) // bound below the required streak
	sleeps := 0
	p.sleep = func(time.Duration) { sleeps++ }

	outcome, err := p.Observe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Unstable {
		t.Fatalf("outcome = %v, want unstable at exhausted bound", outcome)
	}
	if sleeps != 2 {
		t.Fatalf("slept %d times, want 2", sleeps)
	}
}

func TestObserveHonorsContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp_a.mp4")
	writeSized(t, path, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestProbe(t, 15, 3, nil).Observe(ctx, path); err == nil {
		t.Fatal("expected context error")
	}
}
