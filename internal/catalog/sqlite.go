package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" //nolint:revive // registers the "sqlite3" database/sql driver.
)

// sqliteStore implements Store over a single *sql.DB. Every multi-statement
// invariant from the data model (auto-created manual identity, atomic
// candidate choice, cascading delete) is wrapped in its own short
// transaction; no transaction is ever held open across a subprocess call.
type sqliteStore struct {
	db    *sql.DB
	dedup *dedupIndex
}

// Open creates or opens the sqlite database at dsn, applies pending
// migrations, and warms the dedup index from existing rows.
func Open(ctx context.Context, dsn string) (Store, error) {
	db, err := sql.Open("sqlite3", appendDSNParams(dsn, "_foreign_keys=on&_journal_mode=WAL"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite3 serializes writers; one connection avoids SQLITE_BUSY churn.

	if err := Migrate(ctx, db); err != nil {
		db.Close() //nolint:errcheck // best effort on the failure path.
		return nil, err
	}

	store := &sqliteStore{db: db, dedup: newDedupIndex()}

	if err := warmDedupIndex(ctx, store.dedup, store); err != nil {
		db.Close() //nolint:errcheck // best effort on the failure path.
		return nil, fmt.Errorf("failed to warm dedup index: %w", err)
	}

	return store, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func appendDSNParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}

	return dsn + "?" + params
}

// ---- Tracks ----

func (s *sqliteStore) CreateTrack(ctx context.Context, t *Track) (*Track, error) {
	if s.dedup.MightExist(t.NormalizedArtists, t.NormalizedTitle) {
		existing, err := s.FindTrackByNormalized(ctx, t.NormalizedArtists, t.NormalizedTitle)
		if err != nil && !errors.Is(err, ErrTrackNotFound) {
			return nil, err
		}

		if existing != nil {
			return nil, ErrDuplicateTrack
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a documented no-op.

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (
			artists, title, normalized_artists, normalized_title, duration_ms, isrc, album,
			cover_url, genre, bpm, release_date, spotify_added_at, explicit, searched_not_found,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Artists, t.Title, t.NormalizedArtists, t.NormalizedTitle, t.DurationMs, t.ISRC, t.Album,
		t.CoverURL, t.Genre, t.BPM, t.ReleaseDate, t.SpotifyAddedAt, t.Explicit, t.SearchedNotFound,
		now, now,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, ErrDuplicateTrack
		}

		return nil, fmt.Errorf("failed to insert track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	// Auto-create the manual identity for this track (spec §4.3).
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO track_identities (track_id, provider, provider_track_id)
		VALUES (?, ?, ?)`, id, ProviderManual, fmt.Sprintf("%d", id),
	); err != nil {
		return nil, fmt.Errorf("failed to create manual identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.dedup.Add(t.NormalizedArtists, t.NormalizedTitle)

	created := *t
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now

	return &created, nil
}

func (s *sqliteStore) GetTrack(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, artists, title, normalized_artists, normalized_title, duration_ms, isrc, album,
			cover_url, genre, bpm, release_date, spotify_added_at, explicit, searched_not_found,
			created_at, updated_at
		FROM tracks WHERE id = ?`, id)

	return scanTrack(row)
}

func (s *sqliteStore) FindTrackByNormalized(ctx context.Context, normalizedArtists, normalizedTitle string) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, artists, title, normalized_artists, normalized_title, duration_ms, isrc, album,
			cover_url, genre, bpm, release_date, spotify_added_at, explicit, searched_not_found,
			created_at, updated_at
		FROM tracks WHERE normalized_artists = ? AND normalized_title = ?`, normalizedArtists, normalizedTitle)

	return scanTrack(row)
}

func (s *sqliteStore) UpdateTrack(ctx context.Context, t *Track) error {
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET artists=?, title=?, normalized_artists=?, normalized_title=?, duration_ms=?,
			isrc=?, album=?, cover_url=?, genre=?, bpm=?, release_date=?, spotify_added_at=?,
			explicit=?, searched_not_found=?, updated_at=?
		WHERE id = ?`,
		t.Artists, t.Title, t.NormalizedArtists, t.NormalizedTitle, t.DurationMs, t.ISRC, t.Album,
		t.CoverURL, t.Genre, t.BPM, t.ReleaseDate, t.SpotifyAddedAt, t.Explicit, t.SearchedNotFound,
		t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track %d: %w", t.ID, err)
	}

	return requireRowsAffected(res, ErrTrackNotFound)
}

func (s *sqliteStore) MarkTrackSearchedNotFound(ctx context.Context, trackID int64, notFound bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET searched_not_found = ?, updated_at = ? WHERE id = ?`,
		notFound, time.Now().UTC(), trackID,
	)
	if err != nil {
		return err
	}

	return requireRowsAffected(res, ErrTrackNotFound)
}

// DeleteTrack cascades every dependent row in one transaction (spec §4.3:
// "manual cascade; explicit per-entity delete").
func (s *sqliteStore) DeleteTrack(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a documented no-op.

	cascadeDeletes := []string{
		`DELETE FROM track_identities WHERE track_id = ?`,
		`DELETE FROM search_candidates WHERE track_id = ?`,
		`DELETE FROM downloads WHERE track_id = ?`,
		`DELETE FROM playlist_tracks WHERE track_id = ?`,
		`DELETE FROM library_files WHERE track_id = ?`,
	}

	for _, stmt := range cascadeDeletes {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to cascade delete for track %d: %w", id, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return err
	}

	if err := requireRowsAffected(res, ErrTrackNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) ListTracks(ctx context.Context) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artists, title, normalized_artists, normalized_title, duration_ms, isrc, album,
			cover_url, genre, bpm, release_date, spotify_added_at, explicit, searched_not_found,
			created_at, updated_at
		FROM tracks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*Track

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}

		tracks = append(tracks, t)
	}

	return tracks, rows.Err()
}

// ---- Identities ----

func (s *sqliteStore) CreateIdentity(ctx context.Context, identity *TrackIdentity) (*TrackIdentity, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO track_identities (track_id, provider, provider_track_id, provider_url, fingerprint)
		VALUES (?, ?, ?, ?, ?)`,
		identity.TrackID, identity.Provider, identity.ProviderTrackID, identity.ProviderURL, identity.Fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *identity
	created.ID = id

	return &created, nil
}

func (s *sqliteStore) FindIdentity(ctx context.Context, provider IdentityProvider, providerTrackID string) (*TrackIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, track_id, provider, provider_track_id, provider_url, fingerprint
		FROM track_identities WHERE provider = ? AND provider_track_id = ?`, provider, providerTrackID)

	var identity TrackIdentity

	err := row.Scan(&identity.ID, &identity.TrackID, &identity.Provider, &identity.ProviderTrackID,
		&identity.ProviderURL, &identity.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for a lookup helper.
	}

	if err != nil {
		return nil, err
	}

	return &identity, nil
}

func (s *sqliteStore) ListIdentitiesForTrack(ctx context.Context, trackID int64) ([]*TrackIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, provider, provider_track_id, provider_url, fingerprint
		FROM track_identities WHERE track_id = ?`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []*TrackIdentity

	for rows.Next() {
		var identity TrackIdentity

		if err := rows.Scan(&identity.ID, &identity.TrackID, &identity.Provider, &identity.ProviderTrackID,
			&identity.ProviderURL, &identity.Fingerprint); err != nil {
			return nil, err
		}

		identities = append(identities, &identity)
	}

	return identities, rows.Err()
}

// ---- Playlists ----

func (s *sqliteStore) CreatePlaylist(ctx context.Context, p *Playlist) (*Playlist, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (provider, provider_playlist_id, name, owner, snapshot, source_account_id, selected)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Provider, p.ProviderPlaylistID, p.Name, p.Owner, p.Snapshot, p.SourceAccountID, p.Selected,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *p
	created.ID = id

	return &created, nil
}

func (s *sqliteStore) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_playlist_id, name, owner, snapshot, source_account_id, selected
		FROM playlists WHERE id = ?`, id)

	return scanPlaylist(row)
}

func (s *sqliteStore) FindPlaylistByProvider(ctx context.Context, provider, providerPlaylistID string) (*Playlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_playlist_id, name, owner, snapshot, source_account_id, selected
		FROM playlists WHERE provider = ? AND provider_playlist_id = ?`, provider, providerPlaylistID)

	return scanPlaylist(row)
}

func (s *sqliteStore) UpdatePlaylist(ctx context.Context, p *Playlist) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists SET provider=?, provider_playlist_id=?, name=?, owner=?, snapshot=?,
			source_account_id=?, selected=?
		WHERE id = ?`,
		p.Provider, p.ProviderPlaylistID, p.Name, p.Owner, p.Snapshot, p.SourceAccountID, p.Selected, p.ID,
	)
	if err != nil {
		return err
	}

	return requireRowsAffected(res, ErrPlaylistNotFound)
}

func (s *sqliteStore) SetPlaylistSelected(ctx context.Context, id int64, selected bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE playlists SET selected = ? WHERE id = ?`, selected, id)
	if err != nil {
		return err
	}

	return requireRowsAffected(res, ErrPlaylistNotFound)
}

func (s *sqliteStore) ListPlaylists(ctx context.Context) ([]*Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, provider_playlist_id, name, owner, snapshot, source_account_id, selected
		FROM playlists ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []*Playlist

	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}

		playlists = append(playlists, p)
	}

	return playlists, rows.Err()
}

// ---- PlaylistTracks ----

func (s *sqliteStore) UpsertPlaylistTrack(ctx context.Context, pt *PlaylistTrack) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, position, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(playlist_id, track_id) DO UPDATE SET position = excluded.position, added_at = excluded.added_at`,
		pt.PlaylistID, pt.TrackID, pt.Position, pt.AddedAt,
	)

	return err
}

func (s *sqliteStore) ListPlaylistTracks(ctx context.Context, playlistID int64) ([]*PlaylistTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_id, track_id, position, added_at FROM playlist_tracks
		WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlaylistTracks(rows)
}

func (s *sqliteStore) ListTrackPlaylists(ctx context.Context, trackID int64) ([]*PlaylistTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_id, track_id, position, added_at FROM playlist_tracks
		WHERE track_id = ?`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlaylistTracks(rows)
}

func scanPlaylistTracks(rows *sql.Rows) ([]*PlaylistTrack, error) {
	var links []*PlaylistTrack

	for rows.Next() {
		var pt PlaylistTrack

		if err := rows.Scan(&pt.PlaylistID, &pt.TrackID, &pt.Position, &pt.AddedAt); err != nil {
			return nil, err
		}

		links = append(links, &pt)
	}

	return links, rows.Err()
}

// ---- SearchCandidates ----

func (s *sqliteStore) CreateCandidate(ctx context.Context, c *SearchCandidate) (*SearchCandidate, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO search_candidates (track_id, provider, external_id, url, title, channel,
			duration_sec, score, chosen, score_breakdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id, provider, external_id) DO UPDATE SET
			url=excluded.url, title=excluded.title, channel=excluded.channel,
			duration_sec=excluded.duration_sec, score=excluded.score, score_breakdown=excluded.score_breakdown`,
		c.TrackID, c.Provider, c.ExternalID, c.URL, c.Title, c.Channel, c.DurationSec, c.Score, c.Chosen, c.ScoreBreakdown,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *c
	if id != 0 {
		created.ID = id
	}

	return &created, nil
}

func (s *sqliteStore) ListCandidatesForTrack(ctx context.Context, trackID int64) ([]*SearchCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, provider, external_id, url, title, channel, duration_sec, score, chosen, score_breakdown
		FROM search_candidates WHERE track_id = ? ORDER BY score DESC`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*SearchCandidate

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// ChooseCandidate implements the atomic "set chosen on target, clear chosen
// on siblings" invariant from spec §4.3 in a single transaction.
func (s *sqliteStore) ChooseCandidate(ctx context.Context, trackID, candidateID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a documented no-op.

	if _, err := tx.ExecContext(ctx, `
		UPDATE search_candidates SET chosen = 0 WHERE track_id = ?`, trackID,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE search_candidates SET chosen = 1 WHERE id = ? AND track_id = ?`, candidateID, trackID,
	)
	if err != nil {
		return err
	}

	if err := requireRowsAffected(res, ErrCandidateNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) GetChosenCandidate(ctx context.Context, trackID int64) (*SearchCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, track_id, provider, external_id, url, title, channel, duration_sec, score, chosen, score_breakdown
		FROM search_candidates WHERE track_id = ? AND chosen = 1`, trackID)

	return scanCandidate(row)
}

// ---- Downloads ----

func (s *sqliteStore) CreateDownload(ctx context.Context, d *Download) (*Download, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (track_id, candidate_id, provider, status, filepath, format,
			filesize_bytes, checksum, error_message, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.TrackID, d.CandidateID, d.Provider, d.Status, d.Filepath, d.Format, d.FilesizeBytes,
		d.Checksum, d.ErrorMessage, now, d.StartedAt, d.FinishedAt,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, ErrNonTerminalDownloadExists
		}

		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *d
	created.ID = id
	created.CreatedAt = now

	return &created, nil
}

func (s *sqliteStore) GetDownload(ctx context.Context, id int64) (*Download, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, track_id, candidate_id, provider, status, filepath, format, filesize_bytes,
			checksum, error_message, created_at, started_at, finished_at
		FROM downloads WHERE id = ?`, id)

	return scanDownload(row)
}

func (s *sqliteStore) UpdateDownload(ctx context.Context, d *Download) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE downloads SET candidate_id=?, provider=?, status=?, filepath=?, format=?,
			filesize_bytes=?, checksum=?, error_message=?, started_at=?, finished_at=?
		WHERE id = ?`,
		d.CandidateID, d.Provider, d.Status, d.Filepath, d.Format, d.FilesizeBytes, d.Checksum,
		d.ErrorMessage, d.StartedAt, d.FinishedAt, d.ID,
	)
	if err != nil {
		return err
	}

	return requireRowsAffected(res, ErrDownloadNotFound)
}

func (s *sqliteStore) ListDownloadsForTrack(ctx context.Context, trackID int64) ([]*Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, candidate_id, provider, status, filepath, format, filesize_bytes,
			checksum, error_message, created_at, started_at, finished_at
		FROM downloads WHERE track_id = ? ORDER BY created_at DESC`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDownloads(rows)
}

func (s *sqliteStore) ListDownloadsByStatus(ctx context.Context, status DownloadStatus) ([]*Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, candidate_id, provider, status, filepath, format, filesize_bytes,
			checksum, error_message, created_at, started_at, finished_at
		FROM downloads WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// DeleteDownloadsOlderThanKeep prunes finished downloads beyond the most
// recent keep rows across all tracks, used by the scheduler's HISTORY_KEEP
// sweep.
func (s *sqliteStore) DeleteDownloadsOlderThanKeep(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM downloads WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY created_at DESC) AS rn
				FROM downloads WHERE status IN ('done', 'failed', 'skipped', 'already')
			) ranked WHERE ranked.rn > ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune download history: %w", err)
	}

	return res.RowsAffected()
}

func scanDownloads(rows *sql.Rows) ([]*Download, error) {
	var downloads []*Download

	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}

		downloads = append(downloads, d)
	}

	return downloads, rows.Err()
}

// ---- LibraryFiles ----

func (s *sqliteStore) UpsertLibraryFile(ctx context.Context, f *LibraryFile) (*LibraryFile, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_files (track_id, filepath, file_size, file_mtime, checksum, container, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath) DO UPDATE SET
			track_id=excluded.track_id, file_size=excluded.file_size, file_mtime=excluded.file_mtime,
			checksum=excluded.checksum, container=excluded.container`,
		f.TrackID, f.Filepath, f.FileSize, f.FileMtime, f.Checksum, f.Container, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert library file: %w", err)
	}

	return s.GetLibraryFileForTrack(ctx, f.TrackID)
}

func (s *sqliteStore) GetLibraryFileForTrack(ctx context.Context, trackID int64) (*LibraryFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, track_id, filepath, file_size, file_mtime, checksum, container, created_at
		FROM library_files WHERE track_id = ?`, trackID)

	return scanLibraryFile(row)
}

func (s *sqliteStore) GetLibraryFile(ctx context.Context, id int64) (*LibraryFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, track_id, filepath, file_size, file_mtime, checksum, container, created_at
		FROM library_files WHERE id = ?`, id)

	return scanLibraryFile(row)
}

func (s *sqliteStore) DeleteLibraryFile(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM library_files WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ListLibraryFiles(ctx context.Context) ([]*LibraryFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, filepath, file_size, file_mtime, checksum, container, created_at
		FROM library_files ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*LibraryFile

	for rows.Next() {
		f, err := scanLibraryFile(rows)
		if err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

// ---- SourceAccounts ----

func (s *sqliteStore) UpsertSourceAccount(ctx context.Context, a *SourceAccount) (*SourceAccount, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_accounts (provider, external_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(provider, external_id) DO NOTHING`, a.Provider, a.ExternalID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source account: %w", err)
	}

	return s.FindSourceAccount(ctx, a.Provider, a.ExternalID)
}

func (s *sqliteStore) GetSourceAccount(ctx context.Context, id int64) (*SourceAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, external_id, created_at FROM source_accounts WHERE id = ?`, id)

	return scanSourceAccount(row)
}

func (s *sqliteStore) FindSourceAccount(ctx context.Context, provider, externalID string) (*SourceAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, external_id, created_at FROM source_accounts
		WHERE provider = ? AND external_id = ?`, provider, externalID)

	return scanSourceAccount(row)
}

// ---- OAuthTokens ----

func (s *sqliteStore) PutOAuthToken(ctx context.Context, t *OAuthToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (source_account_id, encrypted_access_token, encrypted_refresh_token, expiry)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_account_id) DO UPDATE SET
			encrypted_access_token=excluded.encrypted_access_token,
			encrypted_refresh_token=excluded.encrypted_refresh_token,
			expiry=excluded.expiry`,
		t.SourceAccountID, t.EncryptedAccessToken, t.EncryptedRefreshToken, t.Expiry,
	)

	return err
}

func (s *sqliteStore) GetOAuthToken(ctx context.Context, sourceAccountID int64) (*OAuthToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_account_id, encrypted_access_token, encrypted_refresh_token, expiry
		FROM oauth_tokens WHERE source_account_id = ?`, sourceAccountID)

	var t OAuthToken

	err := row.Scan(&t.ID, &t.SourceAccountID, &t.EncryptedAccessToken, &t.EncryptedRefreshToken, &t.Expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("oauth token for account %d: %w", sourceAccountID, ErrAccountNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ---- OAuthStates ----

func (s *sqliteStore) CreateOAuthState(ctx context.Context, st *OAuthState) error {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_states (state, code_verifier, created_at) VALUES (?, ?, ?)`,
		st.State, st.CodeVerifier, now,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	st.ID = id
	st.CreatedAt = now

	return nil
}

// ConsumeOAuthState reads and deletes a state row in one transaction, so the
// PKCE verifier can only be redeemed once.
func (s *sqliteStore) ConsumeOAuthState(ctx context.Context, state string) (*OAuthState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a documented no-op.

	row := tx.QueryRowContext(ctx, `
		SELECT id, state, code_verifier, created_at FROM oauth_states WHERE state = ?`, state)

	var st OAuthState

	if err := row.Scan(&st.ID, &st.State, &st.CodeVerifier, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOAuthStateNotFound
		}

		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE id = ?`, st.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &st, nil
}

// ---- scan helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track

	err := row.Scan(&t.ID, &t.Artists, &t.Title, &t.NormalizedArtists, &t.NormalizedTitle, &t.DurationMs,
		&t.ISRC, &t.Album, &t.CoverURL, &t.Genre, &t.BPM, &t.ReleaseDate, &t.SpotifyAddedAt, &t.Explicit,
		&t.SearchedNotFound, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}

	if err != nil {
		return nil, err
	}

	return &t, nil
}

func scanPlaylist(row rowScanner) (*Playlist, error) {
	var p Playlist

	err := row.Scan(&p.ID, &p.Provider, &p.ProviderPlaylistID, &p.Name, &p.Owner, &p.Snapshot,
		&p.SourceAccountID, &p.Selected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}

	if err != nil {
		return nil, err
	}

	return &p, nil
}

func scanCandidate(row rowScanner) (*SearchCandidate, error) {
	var c SearchCandidate

	err := row.Scan(&c.ID, &c.TrackID, &c.Provider, &c.ExternalID, &c.URL, &c.Title, &c.Channel,
		&c.DurationSec, &c.Score, &c.Chosen, &c.ScoreBreakdown)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}

	if err != nil {
		return nil, err
	}

	return &c, nil
}

func scanDownload(row rowScanner) (*Download, error) {
	var d Download

	err := row.Scan(&d.ID, &d.TrackID, &d.CandidateID, &d.Provider, &d.Status, &d.Filepath, &d.Format,
		&d.FilesizeBytes, &d.Checksum, &d.ErrorMessage, &d.CreatedAt, &d.StartedAt, &d.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDownloadNotFound
	}

	if err != nil {
		return nil, err
	}

	return &d, nil
}

func scanLibraryFile(row rowScanner) (*LibraryFile, error) {
	var f LibraryFile

	err := row.Scan(&f.ID, &f.TrackID, &f.Filepath, &f.FileSize, &f.FileMtime, &f.Checksum, &f.Container, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent library file is a normal "not downloaded yet" state.
	}

	if err != nil {
		return nil, err
	}

	return &f, nil
}

func scanSourceAccount(row rowScanner) (*SourceAccount, error) {
	var a SourceAccount

	err := row.Scan(&a.ID, &a.Provider, &a.ExternalID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, err
	}

	return &a, nil
}

func requireRowsAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return notFoundErr
	}

	return nil
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
