package procs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"streamhalt/internal/services"
)

// fakeDirectory simulates a process table. termable processes die on
// SIGTERM, others only on SIGKILL, immortal ones never.
type fakeDirectory struct {
	procs    map[int]*fakeProc
	listErr  error
	received map[int][]SignalKind
}

type fakeProc struct {
	command  string
	immortal bool
	termable bool // dies on SIGTERM
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		procs:    map[int]*fakeProc{},
		received: map[int][]SignalKind{},
	}
}

func (d *fakeDirectory) add(pid int, command string, termable, immortal bool) {
	d.procs[pid] = &fakeProc{command: command, termable: termable, immortal: immortal}
}

func (d *fakeDirectory) ListMatching(_ context.Context, pattern string) ([]Handle, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	var handles []Handle
	for pid, proc := range d.procs {
		if strings.Contains(proc.command, pattern) {
			handles = append(handles, Handle{PID: pid, Command: proc.command})
		}
	}
	return handles, nil
}

func (d *fakeDirectory) Signal(_ context.Context, h Handle, kind SignalKind) error {
	proc, ok := d.procs[h.PID]
	if !ok {
		return nil
	}
	d.received[h.PID] = append(d.received[h.PID], kind)
	if proc.immortal {
		return nil
	}
	if kind == SignalKill || (kind == SignalTerminate && proc.termable) {
		delete(d.procs, h.PID)
	}
	return nil
}

func newTestTerminator(dir Directory) (*Terminator, *int) {
	t := NewTerminator(dir, nil)
	sleeps := 0
	t.sleep = func(time.Duration) { sleeps++ }
	return t, &sleeps
}

func producerSpec() Spec {
	return Spec{
		Name:          "producers",
		Patterns:      []string{"rtsp_stream", "run.py"},
		GracePeriod:   10 * time.Second,
		CheckInterval: time.Second,
	}
}

func TestTerminateNotRunning(t *testing.T) {
	term, sleeps := newTestTerminator(newFakeDirectory())
	outcome := term.Terminate(context.Background(), producerSpec())

	if !outcome.Stopped || outcome.Matched != 0 || outcome.Escalated {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if *sleeps != 0 {
		t.Fatalf("should not wait when nothing is running, slept %d times", *sleeps)
	}
}

func TestTerminateGraceful(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(101, "python3 run.py --stream 1", true, false)
	dir.add(102, "screen rtsp_stream2", true, false)

	term, _ := newTestTerminator(dir)
	outcome := term.Terminate(context.Background(), producerSpec())

	if !outcome.Stopped || outcome.Escalated {
		t.Fatalf("expected graceful stop, got %+v", outcome)
	}
	if outcome.Matched != 2 {
		t.Fatalf("matched = %d, want 2", outcome.Matched)
	}
	for _, pid := range []int{101, 102} {
		got := dir.received[pid]
		if len(got) != 1 || got[0] != SignalTerminate {
			t.Fatalf("pid %d signals = %v, want one terminate", pid, got)
		}
	}
}

func TestTerminateDeduplicatesAcrossPatterns(t *testing.T) {
	dir := newFakeDirectory()
	// One process matching both patterns must be signaled once.
	dir.add(103, "screen rtsp_stream1 python3 run.py", true, false)

	term, _ := newTestTerminator(dir)
	outcome := term.Terminate(context.Background(), producerSpec())

	if outcome.Matched != 1 {
		t.Fatalf("matched = %d, want 1", outcome.Matched)
	}
	if got := dir.received[103]; len(got) != 1 {
		t.Fatalf("pid 103 signaled %d times, want 1", len(got))
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(104, "python3 run.py --stream 1", false, false) // ignores SIGTERM

	term, _ := newTestTerminator(dir)
	outcome := term.Terminate(context.Background(), producerSpec())

	if !outcome.Escalated {
		t.Fatal("expected escalation")
	}
	if !outcome.Stopped {
		t.Fatalf("SIGKILL should have stopped the process: %+v", outcome)
	}
	got := dir.received[104]
	if len(got) != 2 || got[0] != SignalTerminate || got[1] != SignalKill {
		t.Fatalf("signals = %v, want [terminate kill]", got)
	}
}

func TestTerminateBoundedForImmortalProcess(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(105, "python3 run.py --stream 1", false, true)

	term, sleeps := newTestTerminator(dir)
	spec := producerSpec()
	outcome := term.Terminate(context.Background(), spec)

	if outcome.Stopped {
		t.Fatal("immortal process cannot be stopped")
	}
	if !outcome.Escalated {
		t.Fatal("expected escalation")
	}
	if len(outcome.Remaining) != 1 || outcome.Remaining[0] != 105 {
		t.Fatalf("remaining = %v, want [105]", outcome.Remaining)
	}
	if !errors.Is(outcome.Err, services.ErrUnresponsive) {
		t.Fatalf("err = %v, want ErrUnresponsive", outcome.Err)
	}
	// Exactly grace-period cycles plus the one post-kill check.
	wantSleeps := int(spec.GracePeriod/spec.CheckInterval) + 1
	if *sleeps != wantSleeps {
		t.Fatalf("slept %d times, want %d", *sleeps, wantSleeps)
	}
}

func TestTerminateReportsListingFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.listErr = context.DeadlineExceeded

	term, _ := newTestTerminator(dir)
	outcome := term.Terminate(context.Background(), producerSpec())

	// Listing failure looks like "nothing running": reported, not fatal.
	if !outcome.Stopped || outcome.Matched != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
