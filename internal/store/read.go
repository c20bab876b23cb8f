package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

func (s *Store) GetUser(name string) (User, error) {
	// updated_at stays a raw column: the driver only converts DATETIME
	// columns to time.Time, not expressions over them.
	row := s.db.QueryRow(
		"SELECT name, COALESCE(email, ''), COALESCE(display_name, ''), created_at, updated_at FROM User WHERE name = ?",
		name)
	var u User
	var updated sql.NullTime
	err := row.Scan(&u.Name, &u.Email, &u.DisplayName, &u.CreatedAt, &updated)
	if err == sql.ErrNoRows {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user %q: %w", name, err)
	}
	u.UpdatedAt = u.CreatedAt
	if updated.Valid {
		u.UpdatedAt = updated.Time
	}
	return u, nil
}

func (s *Store) ListUsers(skip, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		"SELECT name, COALESCE(email, ''), COALESCE(display_name, ''), created_at, updated_at FROM User ORDER BY name LIMIT ? OFFSET ?",
		limit, skip)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var updated sql.NullTime
		if err := rows.Scan(&u.Name, &u.Email, &u.DisplayName, &u.CreatedAt, &updated); err != nil {
			return nil, err
		}
		u.UpdatedAt = u.CreatedAt
		if updated.Valid {
			u.UpdatedAt = updated.Time
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// scrobbleRange builds the WHERE clause shared by the range query and its
// count. Zero bounds are unbounded; both bounds are inclusive.
func scrobbleRange(user string, start, end time.Time) (string, []interface{}) {
	clauses := []string{"user = ?"}
	args := []interface{}{user}
	if !start.IsZero() {
		clauses = append(clauses, "listened_at >= ?")
		args = append(args, start.Unix())
	}
	if !end.IsZero() {
		clauses = append(clauses, "listened_at <= ?")
		args = append(args, end.Unix())
	}
	return strings.Join(clauses, " AND "), args
}

// ScrobblesInRange returns a user's listens ordered by listened_at ascending.
// limit <= 0 returns all matching rows.
func (s *Store) ScrobblesInRange(user string, start, end time.Time, skip, limit int) ([]Scrobble, error) {
	where, args := scrobbleRange(user, start, end)
	query := fmt.Sprintf(
		"SELECT user, artist, album, track, listened_at, artwork_url FROM Scrobble WHERE %s ORDER BY listened_at ASC",
		where)
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, skip)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scrobbles: %w", err)
	}
	defer rows.Close()

	var scrobbles []Scrobble
	for rows.Next() {
		var sc Scrobble
		var uts int64
		if err := rows.Scan(&sc.User, &sc.Artist, &sc.Album, &sc.Track, &uts, &sc.ArtworkURL); err != nil {
			return nil, err
		}
		sc.ListenedAt = time.Unix(uts, 0)
		scrobbles = append(scrobbles, sc)
	}
	return scrobbles, rows.Err()
}

func (s *Store) CountScrobbles(user string, start, end time.Time) (int, error) {
	where, args := scrobbleRange(user, start, end)
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM Scrobble WHERE "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting scrobbles: %w", err)
	}
	return count, nil
}

// Trends returns stored trend rows ordered by period, then play count
// descending. An empty period matches all periods.
func (s *Store) Trends(user, period string, skip, limit int) ([]Trend, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT user, period, artist, play_count, is_new_discovery FROM ArtistTrend WHERE user = ?"
	args := []interface{}{user}
	if period != "" {
		query += " AND period = ?"
		args = append(args, period)
	}
	query += " ORDER BY period, play_count DESC, artist LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	var trends []Trend
	for rows.Next() {
		var t Trend
		if err := rows.Scan(&t.User, &t.Period, &t.Artist, &t.PlayCount, &t.IsNewDiscovery); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (s *Store) CountTrends(user, period string) (int, error) {
	query := "SELECT COUNT(*) FROM ArtistTrend WHERE user = ?"
	args := []interface{}{user}
	if period != "" {
		query += " AND period = ?"
		args = append(args, period)
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting trends: %w", err)
	}
	return count, nil
}

func (s *Store) Activities(user string, start, end time.Time, skip, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT user, date, track_count FROM ListeningActivity WHERE user = ?"
	args := []interface{}{user}
	if !start.IsZero() {
		query += " AND date >= ?"
		args = append(args, start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		query += " AND date <= ?"
		args = append(args, end.Format("2006-01-02"))
	}
	query += " ORDER BY date LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var date string
		if err := rows.Scan(&a.User, &date, &a.TrackCount); err != nil {
			return nil, err
		}
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parsing activity date %q: %w", date, err)
		}
		a.Date = d
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Store) CountActivities(user string, start, end time.Time) (int, error) {
	query := "SELECT COUNT(*) FROM ListeningActivity WHERE user = ?"
	args := []interface{}{user}
	if !start.IsZero() {
		query += " AND date >= ?"
		args = append(args, start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		query += " AND date <= ?"
		args = append(args, end.Format("2006-01-02"))
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting activities: %w", err)
	}
	return count, nil
}
