package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only schema step, applied in order and recorded
// in schema_migrations. This replaces the best-effort "patch missing
// columns" pattern with an explicit, versioned runner (spec §9).
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS tracks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				artists TEXT NOT NULL,
				title TEXT NOT NULL,
				normalized_artists TEXT NOT NULL,
				normalized_title TEXT NOT NULL,
				duration_ms INTEGER,
				isrc TEXT,
				album TEXT,
				cover_url TEXT,
				genre TEXT,
				bpm REAL,
				release_date TEXT,
				spotify_added_at DATETIME,
				explicit INTEGER NOT NULL DEFAULT 0,
				searched_not_found INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_dedup
				ON tracks(normalized_artists, normalized_title)`,
			`CREATE TABLE IF NOT EXISTS track_identities (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				track_id INTEGER NOT NULL REFERENCES tracks(id),
				provider TEXT NOT NULL,
				provider_track_id TEXT NOT NULL,
				provider_url TEXT,
				fingerprint TEXT,
				UNIQUE(provider, provider_track_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_identities_track ON track_identities(track_id)`,
			`CREATE TABLE IF NOT EXISTS playlists (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				provider TEXT NOT NULL,
				provider_playlist_id TEXT,
				name TEXT NOT NULL,
				owner TEXT,
				snapshot TEXT,
				source_account_id INTEGER,
				selected INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_provider
				ON playlists(provider, provider_playlist_id)`,
			`CREATE TABLE IF NOT EXISTS playlist_tracks (
				playlist_id INTEGER NOT NULL REFERENCES playlists(id),
				track_id INTEGER NOT NULL REFERENCES tracks(id),
				position INTEGER,
				added_at DATETIME,
				PRIMARY KEY (playlist_id, track_id)
			)`,
			`CREATE TABLE IF NOT EXISTS search_candidates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				track_id INTEGER NOT NULL REFERENCES tracks(id),
				provider TEXT NOT NULL,
				external_id TEXT NOT NULL,
				url TEXT NOT NULL,
				title TEXT NOT NULL,
				channel TEXT,
				duration_sec INTEGER,
				score REAL NOT NULL DEFAULT 0,
				chosen INTEGER NOT NULL DEFAULT 0,
				score_breakdown TEXT,
				UNIQUE(track_id, provider, external_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_candidates_track ON search_candidates(track_id)`,
			`CREATE TABLE IF NOT EXISTS downloads (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				track_id INTEGER NOT NULL REFERENCES tracks(id),
				candidate_id INTEGER,
				provider TEXT NOT NULL,
				status TEXT NOT NULL,
				filepath TEXT,
				format TEXT,
				filesize_bytes INTEGER,
				checksum TEXT,
				error_message TEXT,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				started_at DATETIME,
				finished_at DATETIME
			)`,
			`CREATE INDEX IF NOT EXISTS idx_downloads_track ON downloads(track_id)`,
			`CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status)`,
			`CREATE TABLE IF NOT EXISTS library_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				track_id INTEGER NOT NULL REFERENCES tracks(id),
				filepath TEXT NOT NULL UNIQUE,
				file_size INTEGER,
				file_mtime DATETIME,
				checksum TEXT,
				container TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_library_files_track ON library_files(track_id)`,
			`CREATE TABLE IF NOT EXISTS source_accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				provider TEXT NOT NULL,
				external_id TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(provider, external_id)
			)`,
			`CREATE TABLE IF NOT EXISTS oauth_tokens (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_account_id INTEGER NOT NULL REFERENCES source_accounts(id),
				encrypted_access_token BLOB,
				encrypted_refresh_token BLOB,
				expiry DATETIME
			)`,
			`CREATE TABLE IF NOT EXISTS oauth_states (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				state TEXT NOT NULL UNIQUE,
				code_verifier TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		version: 2,
		name:    "downloads_one_nonterminal_per_track",
		stmts: []string{
			// Enforces the Download invariant that at most one non-terminal
			// (queued or running) Download can exist per track_id, closing
			// the race window between Enqueue's lookup of an in-flight
			// Download and the insert itself.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_downloads_one_nonterminal_per_track
				ON downloads(track_id) WHERE status IN ('queued', 'running')`,
		},
	},
}

// Migrate applies every migration with a version greater than the database's
// current schema_migrations high-water mark, in order, each inside its own
// transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read current schema version: %w", err)
	}

	return int(version.Int64), nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a documented no-op.

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, name) VALUES (?, ?)`, m.version, m.name,
	); err != nil {
		return err
	}

	return tx.Commit()
}
