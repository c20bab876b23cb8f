package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Continuation run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ContinuationRun records a background continuation of an interrupted
// ingestion. The row is the run's only completion signal: there is no caller
// waiting on the goroutine, so operators and tests poll this record instead.
type ContinuationRun struct {
	ID          string
	User        string
	StartPage   int
	From        time.Time
	To          time.Time
	Status      string
	PagesDone   int
	FailedPages []int
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (s *Store) StartContinuation(run ContinuationRun) error {
	_, err := s.db.Exec(`
		INSERT INTO ContinuationRun (id, user, start_page, from_date, to_date, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.User, run.StartPage, unixOrZero(run.From), unixOrZero(run.To), RunRunning, time.Now())
	if err != nil {
		return fmt.Errorf("recording continuation run %s: %w", run.ID, err)
	}
	return nil
}

// FinishContinuation closes out a run with its terminal status, RunCompleted
// or RunFailed.
func (s *Store) FinishContinuation(id, status string, pagesDone int, failedPages []int) error {
	_, err := s.db.Exec(`
		UPDATE ContinuationRun
		SET status = ?, pages_done = ?, failed_pages = ?, finished_at = ?
		WHERE id = ?`,
		status, pagesDone, joinPages(failedPages), time.Now(), id)
	if err != nil {
		return fmt.Errorf("finishing continuation run %s: %w", id, err)
	}
	return nil
}

func (s *Store) Continuation(id string) (ContinuationRun, error) {
	row := s.db.QueryRow(`
		SELECT id, user, start_page, from_date, to_date, status, pages_done, failed_pages,
		       started_at, finished_at
		FROM ContinuationRun WHERE id = ?`, id)

	var run ContinuationRun
	var from, to int64
	var failed string
	var started, finished sql.NullTime
	err := row.Scan(&run.ID, &run.User, &run.StartPage, &from, &to, &run.Status,
		&run.PagesDone, &failed, &started, &finished)
	if err == sql.ErrNoRows {
		return ContinuationRun{}, ErrRunNotFound
	}
	if err != nil {
		return ContinuationRun{}, fmt.Errorf("getting continuation run %s: %w", id, err)
	}

	if from != 0 {
		run.From = time.Unix(from, 0)
	}
	if to != 0 {
		run.To = time.Unix(to, 0)
	}
	run.FailedPages = splitPages(failed)
	if started.Valid {
		run.StartedAt = started.Time
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func splitPages(s string) []int {
	if s == "" {
		return nil
	}
	var pages []int
	for _, part := range strings.Split(s, ",") {
		p, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		pages = append(pages, p)
	}
	return pages
}
