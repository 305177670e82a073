package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := store.BeginRun(ctx, "run-1", started); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, Run{
		ID:               "run-1",
		FinishedAt:       started.Add(30 * time.Second),
		ProducersStopped: 6,
		FilesFinalized:   4,
		FilesRelocated:   4,
		Outcome:          "done",
	}); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.ProducersStopped != 6 || run.FilesRelocated != 4 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("started at = %v, want %v", run.StartedAt, started)
	}
	if run.Outcome != "done" {
		t.Fatalf("outcome = %q", run.Outcome)
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id := []string{"run-a", "run-b", "run-c"}[i]
		if err := store.BeginRun(ctx, id, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestFileEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	events := []FileEvent{
		{RunID: "run-1", Stream: 1, Name: "temp_a.mp4", Action: "finalized", Detail: "a.mp4"},
		{RunID: "run-1", Stream: 2, Name: "temp_b.mp4", Action: "pending", Detail: "unstable"},
	}
	for _, event := range events {
		if err := store.RecordFileEvent(ctx, event); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.FileEvents(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Name != "temp_a.mp4" || got[0].Action != "finalized" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Detail != "unstable" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("created_at should be populated")
	}
}
