// Package sqlite provides SQLite-backed implementations of the repository
// ports.
package sqlite

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // database driver
)

// Adapter owns the database handle shared by all repositories.
type Adapter struct {
	db *sql.DB
}

// builder is the shared statement builder; SQLite uses ? placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// NewAdapter opens the database and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	a := &Adapter{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return a, nil
}

// Close shuts the connection down gracefully.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		spotify_id TEXT NOT NULL UNIQUE,
		display_name TEXT,
		email TEXT,
		country TEXT,
		date_of_birth DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		token_expiry DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS generation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		generated_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_generation_log_user ON generation_log(user_id, generated_at);

	CREATE TABLE IF NOT EXISTS tracks (
		user_id INTEGER NOT NULL,
		spotify_id TEXT NOT NULL,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		duration_ms INTEGER,
		popularity INTEGER,
		explicit INTEGER DEFAULT 0,
		preview_url TEXT,
		external_url TEXT,
		image_url TEXT,
		added_at DATETIME,
		release_date TEXT,
		has_features INTEGER NOT NULL DEFAULT 0,
		acousticness REAL,
		danceability REAL,
		energy REAL,
		instrumentalness REAL,
		liveness REAL,
		loudness REAL,
		speechiness REAL,
		tempo REAL,
		valence REAL,
		key INTEGER,
		mode INTEGER,
		time_signature INTEGER,
		cluster_id INTEGER,
		PRIMARY KEY (user_id, spotify_id),
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_tracks_cluster ON tracks(user_id, cluster_id);

	CREATE TABLE IF NOT EXISTS clusters (
		user_id INTEGER NOT NULL,
		cluster_id INTEGER NOT NULL,
		centroid TEXT NOT NULL,
		track_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, cluster_id),
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS analysis_progress (
		user_id INTEGER PRIMARY KEY,
		status TEXT NOT NULL,
		step TEXT,
		percent INTEGER DEFAULT 0,
		tracks_processed INTEGER DEFAULT 0,
		total_tracks INTEGER DEFAULT 0,
		error_message TEXT,
		started_at DATETIME,
		updated_at DATETIME,
		completed_at DATETIME,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS recommendations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		spotify_track_id TEXT NOT NULL,
		track_name TEXT NOT NULL,
		artist_name TEXT NOT NULL,
		album_name TEXT,
		preview_url TEXT,
		external_url TEXT,
		image_url TEXT,
		type TEXT NOT NULL,
		source_cluster_id INTEGER,
		confidence REAL NOT NULL,
		liked INTEGER,
		already_knew INTEGER,
		feedback_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id, created_at);

	CREATE TABLE IF NOT EXISTS chart_entries (
		year INTEGER NOT NULL,
		chart_date DATETIME NOT NULL,
		rank INTEGER NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chart_entries_year ON chart_entries(year);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
