// Package migration holds the schema DDL for the sqlite database.
package migration

// Create builds the full schema on an empty database. Scrobble carries the
// identity key (user, artist, track, listened_at): two rows sharing that tuple
// are the same real-world listen. ArtistTrend and ListeningActivity are derived
// tables keyed so that re-running an analysis replaces the previous run's rows.
const Create = `
CREATE TABLE User (
  name TEXT PRIMARY KEY,
  email TEXT UNIQUE,
  display_name TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME
);

CREATE TABLE Scrobble (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user TEXT NOT NULL REFERENCES User(name) ON DELETE CASCADE,
  artist TEXT NOT NULL,
  album TEXT NOT NULL DEFAULT '',
  track TEXT NOT NULL,
  listened_at INTEGER NOT NULL,
  artwork_url TEXT NOT NULL DEFAULT '',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (user, artist, track, listened_at)
);

CREATE INDEX idx_scrobble_user_listened_at ON Scrobble(user, listened_at);

CREATE TABLE ArtistTrend (
  user TEXT NOT NULL REFERENCES User(name) ON DELETE CASCADE,
  period TEXT NOT NULL,
  artist TEXT NOT NULL,
  play_count INTEGER NOT NULL,
  is_new_discovery INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (user, period, artist)
);

CREATE TABLE ListeningActivity (
  user TEXT NOT NULL REFERENCES User(name) ON DELETE CASCADE,
  date TEXT NOT NULL,
  track_count INTEGER NOT NULL,
  listening_time REAL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (user, date)
);

CREATE TABLE ContinuationRun (
  id TEXT PRIMARY KEY,
  user TEXT NOT NULL REFERENCES User(name) ON DELETE CASCADE,
  start_page INTEGER NOT NULL,
  from_date INTEGER NOT NULL DEFAULT 0,
  to_date INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  pages_done INTEGER NOT NULL DEFAULT 0,
  failed_pages TEXT NOT NULL DEFAULT '',
  started_at DATETIME,
  finished_at DATETIME
);
`
