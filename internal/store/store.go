// Package store persists users, scrobbles, and derived analysis rows in
// sqlite. Scrobble inserts are deduplicated on (user, artist, track,
// listened_at), so callers may re-insert the same page of data freely.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tuneline/tuneline/internal/migration"
)

var (
	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoListens is returned when a user has no stored listens for the
	// requested range even after an ingestion attempt.
	ErrNoListens = errors.New("no listens stored for user")

	// ErrRunNotFound is returned when a continuation run id is unknown.
	ErrRunNotFound = errors.New("continuation run not found")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	// Foreign keys enable the User -> Scrobble/ArtistTrend/ListeningActivity
	// delete cascade.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	exists, err := dbExists(db)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := db.Exec(migration.Create); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func dbExists(db *sql.DB) (bool, error) {
	row := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'User'")
	var name string
	err := row.Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking db existence: %w", err)
	}
	return true, nil
}

// User is an account keyed by its external tracking-service username.
type User struct {
	Name        string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Scrobble is a single canonical listen event.
type Scrobble struct {
	User       string
	Artist     string
	Album      string
	Track      string
	ListenedAt time.Time
	ArtworkURL string
}

// Trend is a derived per-period artist play count.
type Trend struct {
	User           string
	Period         string
	Artist         string
	PlayCount      int
	IsNewDiscovery bool
}

// Activity is a derived per-day track count.
type Activity struct {
	User       string
	Date       time.Time
	TrackCount int
}
