package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateUser ensures a user exists. Creating an existing user is a no-op.
func (s *Store) CreateUser(name string) error {
	row := s.db.QueryRow("SELECT name FROM User WHERE name = ?", name)
	var existing string
	err := row.Scan(&existing)
	if err == sql.ErrNoRows {
		_, err := s.db.Exec("INSERT INTO User (name) VALUES (?)", name)
		if err != nil {
			return fmt.Errorf("inserting user %q: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking user %q: %w", name, err)
	}
	return nil
}

func (s *Store) UpdateUser(name, email, displayName string) error {
	res, err := s.db.Exec(
		"UPDATE User SET email = NULLIF(?, ''), display_name = NULLIF(?, ''), updated_at = ? WHERE name = ?",
		email, displayName, time.Now(), name)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user and, via the schema's cascade, every scrobble,
// trend, activity, and continuation row they own.
func (s *Store) DeleteUser(name string) error {
	res, err := s.db.Exec("DELETE FROM User WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting user %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// InsertScrobbles inserts a batch transactionally and reports how many rows
// were actually new. Duplicates of already-stored listens are ignored, not
// errors: the pipeline may race with a concurrent ingestion of the same user.
func (s *Store) InsertScrobbles(scrobbles []Scrobble) (int, error) {
	if len(scrobbles) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO Scrobble (user, artist, album, track, listened_at, artwork_url)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, sc := range scrobbles {
		res, err := stmt.Exec(sc.User, sc.Artist, sc.Album, sc.Track, sc.ListenedAt.Unix(), sc.ArtworkURL)
		if err != nil {
			return 0, fmt.Errorf("inserting scrobble %q/%q: %w", sc.Artist, sc.Track, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return inserted, nil
}

// SaveTrends upserts derived trend rows. Rows are keyed (user, period,
// artist), so a re-run of the analysis replaces the previous run's values.
func (s *Store) SaveTrends(trends []Trend) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO ArtistTrend (user, period, artist, play_count, is_new_discovery)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trend upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trends {
		if _, err := stmt.Exec(t.User, t.Period, t.Artist, t.PlayCount, t.IsNewDiscovery); err != nil {
			return fmt.Errorf("upserting trend %s/%s: %w", t.Period, t.Artist, err)
		}
	}

	return tx.Commit()
}

// SaveActivities upserts derived per-day activity rows, keyed (user, date).
func (s *Store) SaveActivities(activities []Activity) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO ListeningActivity (user, date, track_count)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing activity upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range activities {
		if _, err := stmt.Exec(a.User, a.Date.Format("2006-01-02"), a.TrackCount); err != nil {
			return fmt.Errorf("upserting activity %s: %w", a.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}
