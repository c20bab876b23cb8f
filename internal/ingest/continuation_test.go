package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuneline/tuneline/internal/store"
)

func startRunForTesting(t *testing.T, s *store.Store, startPage int) string {
	t.Helper()
	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	run := store.ContinuationRun{ID: "run-1", User: "alice", StartPage: startPage}
	if err := s.StartContinuation(run); err != nil {
		t.Fatalf("Starting continuation: %v", err)
	}
	return run.ID
}

func TestContinueFromRecordsFailedPages(t *testing.T) {
	s := createStoreForTesting(t)
	src := &fakeSource{totalPages: 5, trackCount: 2, failPages: map[int]bool{4: true}}
	p := NewPipeline(s, src, zerolog.Nop(), 2)

	runID := startRunForTesting(t, s, 3)
	p.ContinueFrom(context.Background(), runID, "alice", time.Time{}, time.Time{}, 3)

	run, err := s.Continuation(runID)
	if err != nil {
		t.Fatalf("Getting continuation run: %v", err)
	}
	if run.Status != store.RunCompleted {
		t.Errorf("Expected status %q, got %q", store.RunCompleted, run.Status)
	}
	if run.PagesDone != 2 {
		t.Errorf("Expected 2 pages done, got %d", run.PagesDone)
	}
	if len(run.FailedPages) != 1 || run.FailedPages[0] != 4 {
		t.Errorf("Expected failed pages [4], got %v", run.FailedPages)
	}

	// Pages 3 and 5 landed despite the hole at 4.
	count, err := s.CountScrobbles("alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Counting scrobbles: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 listens, got %d", count)
	}
}

func TestContinueFromFirstPageFailure(t *testing.T) {
	s := createStoreForTesting(t)
	src := &fakeSource{totalPages: 5, trackCount: 2, failPages: map[int]bool{1: true}}
	p := NewPipeline(s, src, zerolog.Nop(), 2)

	runID := startRunForTesting(t, s, 3)
	p.ContinueFrom(context.Background(), runID, "alice", time.Time{}, time.Time{}, 3)

	run, err := s.Continuation(runID)
	if err != nil {
		t.Fatalf("Getting continuation run: %v", err)
	}
	// Without page 1 the total is unknowable; the run is closed out as
	// failed rather than left running or reported as completed.
	if run.Status != store.RunFailed {
		t.Errorf("Expected status %q, got %q", store.RunFailed, run.Status)
	}
	if run.PagesDone != 0 {
		t.Errorf("Expected 0 pages done, got %d", run.PagesDone)
	}
	if len(run.FailedPages) != 1 || run.FailedPages[0] != 1 {
		t.Errorf("Expected failed pages [1], got %v", run.FailedPages)
	}
}

func TestContinueFromCancelledContext(t *testing.T) {
	s := createStoreForTesting(t)
	src := &fakeSource{totalPages: 50, trackCount: 1}
	p := NewPipeline(s, src, zerolog.Nop(), 2)

	runID := startRunForTesting(t, s, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.ContinueFrom(ctx, runID, "alice", time.Time{}, time.Time{}, 3)

	run, err := s.Continuation(runID)
	if err != nil {
		t.Fatalf("Getting continuation run: %v", err)
	}
	if run.Status != store.RunCompleted {
		t.Errorf("Expected the run record to be closed out, got %q", run.Status)
	}
	if run.PagesDone != 0 {
		t.Errorf("Expected no pages after cancellation, got %d", run.PagesDone)
	}
}
