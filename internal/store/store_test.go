package store

import (
	"errors"
	"testing"
	"time"
)

func createStoreForTesting(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir() + "/tuneline.db")
	if err != nil {
		t.Fatalf("Creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func scrobbleAt(user, artist, track string, at time.Time) Scrobble {
	return Scrobble{
		User:       user,
		Artist:     artist,
		Track:      track,
		ListenedAt: at,
	}
}

func TestCreateUserIdempotent(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Re-creating user should be a no-op: %v", err)
	}

	u, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("Getting user: %v", err)
	}
	if u.Name != "alice" {
		t.Errorf("Expected name alice, got %q", u.Name)
	}
	if u.CreatedAt.IsZero() {
		t.Errorf("Expected created_at to be set")
	}
	// A never-updated user reads back with updated_at defaulted, not a scan
	// failure on the NULL column.
	if !u.UpdatedAt.Equal(u.CreatedAt) {
		t.Errorf("Expected updated_at to default to created_at, got %v and %v", u.UpdatedAt, u.CreatedAt)
	}
}

func TestListUsers(t *testing.T) {
	s := createStoreForTesting(t)

	for _, name := range []string{"alice", "bob"} {
		if err := s.CreateUser(name); err != nil {
			t.Fatalf("Creating user: %v", err)
		}
	}
	if err := s.UpdateUser("bob", "bob@example.com", ""); err != nil {
		t.Fatalf("Updating user: %v", err)
	}

	users, err := s.ListUsers(0, 0)
	if err != nil {
		t.Fatalf("Listing users: %v", err)
	}
	if len(users) != 2 || users[0].Name != "alice" || users[1].Name != "bob" {
		t.Fatalf("Unexpected users: %+v", users)
	}
	if !users[0].UpdatedAt.Equal(users[0].CreatedAt) {
		t.Errorf("Expected alice's updated_at to default to created_at")
	}
	if users[1].UpdatedAt.Before(users[1].CreatedAt) {
		t.Errorf("Expected bob's updated_at at or after created_at")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := createStoreForTesting(t)

	_, err := s.GetUser("nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	if err := s.UpdateUser("alice", "alice@example.com", "Alice"); err != nil {
		t.Fatalf("Updating user: %v", err)
	}

	u, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("Getting user: %v", err)
	}
	if u.Email != "alice@example.com" || u.DisplayName != "Alice" {
		t.Errorf("Unexpected user after update: %+v", u)
	}

	if err := s.UpdateUser("nobody", "x@example.com", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestInsertScrobblesDeduplicates(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	at := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	batch := []Scrobble{
		scrobbleAt("alice", "Radiohead", "Airbag", at),
		scrobbleAt("alice", "Radiohead", "Airbag", at),
		scrobbleAt("alice", "Low", "Monkey", at),
	}

	inserted, err := s.InsertScrobbles(batch)
	if err != nil {
		t.Fatalf("Inserting scrobbles: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 inserted (one duplicate), got %d", inserted)
	}

	// Re-inserting the same batch is entirely ignored.
	inserted, err = s.InsertScrobbles(batch)
	if err != nil {
		t.Fatalf("Re-inserting scrobbles: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted on re-insert, got %d", inserted)
	}

	count, err := s.CountScrobbles("alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Counting scrobbles: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 stored scrobbles, got %d", count)
	}
}

func TestInsertScrobblesSameTrackDifferentTime(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	at := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	inserted, err := s.InsertScrobbles([]Scrobble{
		scrobbleAt("alice", "Radiohead", "Airbag", at),
		scrobbleAt("alice", "Radiohead", "Airbag", at.Add(5*time.Minute)),
	})
	if err != nil {
		t.Fatalf("Inserting scrobbles: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Repeat plays at different times are distinct, expected 2, got %d", inserted)
	}
}

func TestScrobblesInRange(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	base := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	var batch []Scrobble
	for i := 0; i < 5; i++ {
		batch = append(batch, scrobbleAt("alice", "Radiohead", "Airbag", base.AddDate(0, 0, i)))
	}
	if _, err := s.InsertScrobbles(batch); err != nil {
		t.Fatalf("Inserting scrobbles: %v", err)
	}

	// Inclusive bounds.
	got, err := s.ScrobblesInRange("alice", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3), 0, 0)
	if err != nil {
		t.Fatalf("Querying range: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 scrobbles in range, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ListenedAt.Before(got[i-1].ListenedAt) {
			t.Errorf("Expected ascending order")
		}
	}

	// Zero bounds are unbounded.
	got, err = s.ScrobblesInRange("alice", time.Time{}, time.Time{}, 0, 0)
	if err != nil {
		t.Fatalf("Querying unbounded: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("Expected all 5 scrobbles, got %d", len(got))
	}

	// Pagination.
	got, err = s.ScrobblesInRange("alice", time.Time{}, time.Time{}, 2, 2)
	if err != nil {
		t.Fatalf("Querying page: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected page of 2, got %d", len(got))
	}
	if !got[0].ListenedAt.Equal(base.AddDate(0, 0, 2)) {
		t.Errorf("Expected page to start at the third listen, got %v", got[0].ListenedAt)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	at := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	if _, err := s.InsertScrobbles([]Scrobble{scrobbleAt("alice", "Radiohead", "Airbag", at)}); err != nil {
		t.Fatalf("Inserting scrobbles: %v", err)
	}
	if err := s.SaveTrends([]Trend{{User: "alice", Period: "2023-01", Artist: "Radiohead", PlayCount: 1}}); err != nil {
		t.Fatalf("Saving trends: %v", err)
	}

	if err := s.DeleteUser("alice"); err != nil {
		t.Fatalf("Deleting user: %v", err)
	}

	count, err := s.CountScrobbles("alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Counting scrobbles: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected scrobbles to cascade on delete, got %d", count)
	}
	trendCount, err := s.CountTrends("alice", "")
	if err != nil {
		t.Fatalf("Counting trends: %v", err)
	}
	if trendCount != 0 {
		t.Errorf("Expected trends to cascade on delete, got %d", trendCount)
	}

	if err := s.DeleteUser("alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestSaveTrendsReplacesPreviousRun(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	first := []Trend{{User: "alice", Period: "2023-01", Artist: "Radiohead", PlayCount: 5, IsNewDiscovery: true}}
	if err := s.SaveTrends(first); err != nil {
		t.Fatalf("Saving trends: %v", err)
	}

	second := []Trend{{User: "alice", Period: "2023-01", Artist: "Radiohead", PlayCount: 8, IsNewDiscovery: true}}
	if err := s.SaveTrends(second); err != nil {
		t.Fatalf("Re-saving trends: %v", err)
	}

	trends, err := s.Trends("alice", "2023-01", 0, 0)
	if err != nil {
		t.Fatalf("Querying trends: %v", err)
	}
	if len(trends) != 1 {
		t.Fatalf("Expected the re-run to replace the row, got %d rows", len(trends))
	}
	if trends[0].PlayCount != 8 {
		t.Errorf("Expected play count 8 after replace, got %d", trends[0].PlayCount)
	}
}

func TestTrendsOrderingAndFilter(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	trends := []Trend{
		{User: "alice", Period: "2023-02", Artist: "Low", PlayCount: 2},
		{User: "alice", Period: "2023-01", Artist: "Radiohead", PlayCount: 5},
		{User: "alice", Period: "2023-01", Artist: "Low", PlayCount: 9},
	}
	if err := s.SaveTrends(trends); err != nil {
		t.Fatalf("Saving trends: %v", err)
	}

	got, err := s.Trends("alice", "", 0, 0)
	if err != nil {
		t.Fatalf("Querying trends: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 trends, got %d", len(got))
	}
	if got[0].Artist != "Low" || got[0].Period != "2023-01" {
		t.Errorf("Expected 2023-01 Low first (highest count), got %+v", got[0])
	}
	if got[2].Period != "2023-02" {
		t.Errorf("Expected 2023-02 last, got %+v", got[2])
	}

	filtered, err := s.Trends("alice", "2023-02", 0, 0)
	if err != nil {
		t.Fatalf("Querying filtered trends: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Period != "2023-02" {
		t.Errorf("Expected only 2023-02 rows, got %+v", filtered)
	}
}

func TestSaveActivitiesAndQuery(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	activities := []Activity{
		{User: "alice", Date: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), TrackCount: 3},
		{User: "alice", Date: time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC), TrackCount: 7},
	}
	if err := s.SaveActivities(activities); err != nil {
		t.Fatalf("Saving activities: %v", err)
	}

	got, err := s.Activities("alice", time.Time{}, time.Time{}, 0, 0)
	if err != nil {
		t.Fatalf("Querying activities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(got))
	}
	if got[0].TrackCount != 3 || got[1].TrackCount != 7 {
		t.Errorf("Unexpected activity rows: %+v", got)
	}

	// Replacing a day keeps one row with the new count.
	if err := s.SaveActivities([]Activity{{User: "alice", Date: activities[1].Date, TrackCount: 9}}); err != nil {
		t.Fatalf("Re-saving activity: %v", err)
	}
	count, err := s.CountActivities("alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Counting activities: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows after replace, got %d", count)
	}

	bounded, err := s.Activities("alice", activities[1].Date, activities[1].Date, 0, 0)
	if err != nil {
		t.Fatalf("Querying bounded activities: %v", err)
	}
	if len(bounded) != 1 || bounded[0].TrackCount != 9 {
		t.Errorf("Expected the replaced row, got %+v", bounded)
	}
}

func TestContinuationLifecycle(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}

	run := ContinuationRun{
		ID:        "run-1",
		User:      "alice",
		StartPage: 11,
		From:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.StartContinuation(run); err != nil {
		t.Fatalf("Starting continuation: %v", err)
	}

	got, err := s.Continuation("run-1")
	if err != nil {
		t.Fatalf("Getting continuation: %v", err)
	}
	if got.Status != RunRunning {
		t.Errorf("Expected status %q, got %q", RunRunning, got.Status)
	}
	if got.StartPage != 11 {
		t.Errorf("Expected start page 11, got %d", got.StartPage)
	}
	if !got.From.Equal(run.From) {
		t.Errorf("Expected from %v, got %v", run.From, got.From)
	}
	if !got.To.IsZero() {
		t.Errorf("Expected zero to date, got %v", got.To)
	}

	if err := s.FinishContinuation("run-1", RunCompleted, 4, []int{12, 14}); err != nil {
		t.Fatalf("Finishing continuation: %v", err)
	}

	got, err = s.Continuation("run-1")
	if err != nil {
		t.Fatalf("Getting finished continuation: %v", err)
	}
	if got.Status != RunCompleted {
		t.Errorf("Expected status %q, got %q", RunCompleted, got.Status)
	}
	if got.PagesDone != 4 {
		t.Errorf("Expected 4 pages done, got %d", got.PagesDone)
	}
	if len(got.FailedPages) != 2 || got.FailedPages[0] != 12 || got.FailedPages[1] != 14 {
		t.Errorf("Expected failed pages [12 14], got %v", got.FailedPages)
	}
	if got.FinishedAt.IsZero() {
		t.Errorf("Expected finished_at to be set")
	}

	if _, err := s.Continuation("unknown"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestFinishContinuationFailed(t *testing.T) {
	s := createStoreForTesting(t)

	if err := s.CreateUser("alice"); err != nil {
		t.Fatalf("Creating user: %v", err)
	}
	if err := s.StartContinuation(ContinuationRun{ID: "run-1", User: "alice", StartPage: 3}); err != nil {
		t.Fatalf("Starting continuation: %v", err)
	}
	if err := s.FinishContinuation("run-1", RunFailed, 0, []int{1}); err != nil {
		t.Fatalf("Finishing continuation: %v", err)
	}

	run, err := s.Continuation("run-1")
	if err != nil {
		t.Fatalf("Getting continuation: %v", err)
	}
	if run.Status != RunFailed {
		t.Errorf("Expected status %q, got %q", RunFailed, run.Status)
	}
}
