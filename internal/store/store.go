// Package store implements C7: idempotent SQLite persistence for
// artists/albums/tracks, append-only scan history, and the provider signal
// cache (spec §4.7). Grounded on the teacher pack's anyuan-chen-splitter
// server/db/db.go (database/sql + mattn/go-sqlite3, schema-on-open,
// ignore-error ALTER TABLE migrations, bulk ON CONFLICT upserts), generalized
// from a one-table job tracker to the full artist/album/track/scan_history/
// signal_cache schema this pipeline needs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"albumscan/internal/shared"
)

// Store is C7. *sql.DB already serializes writers safely under WAL; the
// coordinator still wraps each album's writes in one transaction (spec §4.7).
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	musicbrainz_artist_id TEXT,
	spotify_artist_id TEXT,
	discogs_artist_id TEXT,
	last_scanned_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_artists_normalized_name ON artists(normalized_name);

CREATE TABLE IF NOT EXISTS albums (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL,
	title TEXT NOT NULL,
	normalized_title TEXT NOT NULL,
	album_type TEXT NOT NULL DEFAULT 'unknown',
	release_year INTEGER,
	total_tracks INTEGER,
	is_compilation BOOLEAN DEFAULT 0,
	is_live BOOLEAN DEFAULT 0,
	is_unplugged BOOLEAN DEFAULT 0,
	cover_art_url TEXT,
	FOREIGN KEY (artist_id) REFERENCES artists(id)
);
CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_albums_artist_title ON albums(artist_id, normalized_title);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL,
	album_id TEXT NOT NULL,
	title TEXT NOT NULL,
	track_number INTEGER,
	disc_number INTEGER,
	duration_seconds INTEGER,
	isrc TEXT,
	musicbrainz_recording_id TEXT,
	spotify_track_id TEXT,
	spotify_artist_id TEXT,
	spotify_album_type TEXT,
	discogs_release_id TEXT,
	is_compilation BOOLEAN DEFAULT 0,
	popularity_score REAL,
	global_popularity REAL,
	album_zscore REAL,
	stars INTEGER,
	is_single BOOLEAN DEFAULT 0,
	single_confidence TEXT,
	single_sources TEXT,
	user_override_mask INTEGER DEFAULT 0,
	last_scanned_at TIMESTAMP,
	metadata_last_updated TIMESTAMP,
	FOREIGN KEY (artist_id) REFERENCES artists(id),
	FOREIGN KEY (album_id) REFERENCES albums(id)
);
CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist_id);
CREATE INDEX IF NOT EXISTS idx_tracks_artist_album ON tracks(artist_id, album_id);
CREATE INDEX IF NOT EXISTS idx_tracks_isrc ON tracks(isrc);
CREATE INDEX IF NOT EXISTS idx_tracks_spotify_track_id ON tracks(spotify_track_id);
CREATE INDEX IF NOT EXISTS idx_tracks_stars ON tracks(stars);
CREATE INDEX IF NOT EXISTS idx_tracks_is_single ON tracks(is_single);

CREATE TABLE IF NOT EXISTS scan_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	album_id TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	outcome TEXT NOT NULL,
	tracks_scanned INTEGER DEFAULT 0,
	singles_detected INTEGER DEFAULT 0,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_scan_history_album ON scan_history(album_id);
CREATE INDEX IF NOT EXISTS idx_scan_history_album_finished ON scan_history(album_id, finished_at);

CREATE TABLE IF NOT EXISTS signal_cache (
	provider TEXT NOT NULL,
	key TEXT NOT NULL,
	payload_json BLOB,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (provider, key)
);
`

// migrations are idempotent ALTER TABLE statements applied after the base
// schema, following the teacher's ignore-the-error pattern for columns that
// may already exist (spec §6: "an idempotent migrator adds any missing columns").
var migrations = []string{
	`ALTER TABLE tracks ADD COLUMN user_override_mask INTEGER DEFAULT 0`,
	`ALTER TABLE tracks ADD COLUMN metadata_last_updated TIMESTAMP`,
	`ALTER TABLE tracks ADD COLUMN spotify_artist_id TEXT`,
}

// Open opens (creating if needed) a WAL-mode SQLite database at path and
// applies the schema and migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	for _, m := range migrations {
		db.Exec(m) // ignored: column likely already exists
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertArtist inserts or updates an artist row keyed by id; on conflict an
// empty provider ID never overwrites a stored one.
func (s *Store) UpsertArtist(ctx context.Context, a *shared.Artist) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (id, name, normalized_name, musicbrainz_artist_id, spotify_artist_id, discogs_artist_id, last_scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			musicbrainz_artist_id = COALESCE(NULLIF(excluded.musicbrainz_artist_id, ''), artists.musicbrainz_artist_id),
			spotify_artist_id = COALESCE(NULLIF(excluded.spotify_artist_id, ''), artists.spotify_artist_id),
			discogs_artist_id = COALESCE(NULLIF(excluded.discogs_artist_id, ''), artists.discogs_artist_id),
			last_scanned_at = excluded.last_scanned_at
	`, a.ID, a.Name, a.NormalizedName, a.MusicBrainzArtistID, a.SpotifyArtistID, a.DiscogsArtistID, a.LastScannedAt)
	if err != nil {
		return &shared.PersistError{Op: "upsert_artist", Err: err}
	}
	return nil
}

// GetArtistByNormalizedName looks up an artist for identity matching (spec §3).
func (s *Store) GetArtistByNormalizedName(ctx context.Context, normalizedName string) (*shared.Artist, error) {
	var a shared.Artist
	var mbID, spID, dcID sql.NullString
	var lastScanned sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, musicbrainz_artist_id, spotify_artist_id, discogs_artist_id, last_scanned_at
		FROM artists WHERE normalized_name = ?
	`, normalizedName).Scan(&a.ID, &a.Name, &a.NormalizedName, &mbID, &spID, &dcID, &lastScanned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &shared.PersistError{Op: "get_artist", Err: err}
	}
	a.MusicBrainzArtistID = mbID.String
	a.SpotifyArtistID = spID.String
	a.DiscogsArtistID = dcID.String
	if lastScanned.Valid {
		a.LastScannedAt = lastScanned.Time
	}
	return &a, nil
}

// UpsertAlbum inserts or updates an album row.
func (s *Store) UpsertAlbum(ctx context.Context, al *shared.Album) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (id, artist_id, title, normalized_title, album_type, release_year, total_tracks, is_compilation, is_live, is_unplugged, cover_art_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			normalized_title = excluded.normalized_title,
			album_type = excluded.album_type,
			release_year = excluded.release_year,
			total_tracks = excluded.total_tracks,
			is_compilation = excluded.is_compilation,
			is_live = excluded.is_live,
			is_unplugged = excluded.is_unplugged,
			cover_art_url = excluded.cover_art_url
	`, al.ID, al.ArtistID, al.Title, al.NormalizedTitle, string(al.AlbumType), al.ReleaseYear, al.TotalTracks,
		al.IsCompilation, al.IsLive, al.IsUnplugged, al.CoverArtURL)
	if err != nil {
		return &shared.PersistError{Op: "upsert_album", Err: err}
	}
	return nil
}

// CommitWorkUnit writes one album's album and track rows in a single
// transaction (spec §4.7, §5: "persistence for an album is atomic"). Track
// upserts honor user_override_mask by only overwriting signal/derived columns
// whose corresponding bit is unset.
func (s *Store) CommitWorkUnit(ctx context.Context, wu *shared.WorkUnit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &shared.PersistError{Op: "begin_tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO albums (id, artist_id, title, normalized_title, album_type, release_year, total_tracks, is_compilation, is_live, is_unplugged, cover_art_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, normalized_title = excluded.normalized_title, album_type = excluded.album_type,
			release_year = excluded.release_year, total_tracks = excluded.total_tracks,
			is_compilation = excluded.is_compilation, is_live = excluded.is_live, is_unplugged = excluded.is_unplugged,
			cover_art_url = excluded.cover_art_url
	`, wu.Album.ID, wu.Album.ArtistID, wu.Album.Title, wu.Album.NormalizedTitle, string(wu.Album.AlbumType),
		wu.Album.ReleaseYear, wu.Album.TotalTracks, wu.Album.IsCompilation, wu.Album.IsLive, wu.Album.IsUnplugged, wu.Album.CoverArtURL); err != nil {
		return &shared.PersistError{Op: "commit_album", Err: err}
	}

	for i := range wu.Tracks {
		t := &wu.Tracks[i]
		sourcesJSON, err := json.Marshal(t.SingleSources)
		if err != nil {
			return &shared.PersistError{Op: "marshal_sources", Err: err}
		}

		var confidence sql.NullString
		if t.SingleConfidence != nil {
			confidence = sql.NullString{String: string(*t.SingleConfidence), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tracks (
				id, artist_id, album_id, title, track_number, disc_number, duration_seconds, isrc,
				musicbrainz_recording_id, spotify_track_id, spotify_artist_id, spotify_album_type, discogs_release_id,
				is_compilation, popularity_score, global_popularity, album_zscore, stars, is_single,
				single_confidence, single_sources, user_override_mask, last_scanned_at, metadata_last_updated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				track_number = excluded.track_number,
				disc_number = excluded.disc_number,
				duration_seconds = excluded.duration_seconds,
				isrc = CASE WHEN (tracks.user_override_mask & 1) = 0 THEN excluded.isrc ELSE tracks.isrc END,
				musicbrainz_recording_id = CASE WHEN (tracks.user_override_mask & 2) = 0 THEN excluded.musicbrainz_recording_id ELSE tracks.musicbrainz_recording_id END,
				spotify_track_id = CASE WHEN (tracks.user_override_mask & 4) = 0 THEN excluded.spotify_track_id ELSE tracks.spotify_track_id END,
				spotify_artist_id = CASE WHEN (tracks.user_override_mask & 4) = 0 THEN excluded.spotify_artist_id ELSE tracks.spotify_artist_id END,
				spotify_album_type = excluded.spotify_album_type,
				discogs_release_id = CASE WHEN (tracks.user_override_mask & 8) = 0 THEN excluded.discogs_release_id ELSE tracks.discogs_release_id END,
				is_compilation = excluded.is_compilation,
				popularity_score = CASE WHEN (tracks.user_override_mask & 16) = 0 THEN excluded.popularity_score ELSE tracks.popularity_score END,
				global_popularity = CASE WHEN (tracks.user_override_mask & 16) = 0 THEN excluded.global_popularity ELSE tracks.global_popularity END,
				album_zscore = excluded.album_zscore,
				stars = CASE WHEN (tracks.user_override_mask & 32) = 0 THEN excluded.stars ELSE tracks.stars END,
				is_single = CASE WHEN (tracks.user_override_mask & 64) = 0 THEN excluded.is_single ELSE tracks.is_single END,
				single_confidence = CASE WHEN (tracks.user_override_mask & 64) = 0 THEN excluded.single_confidence ELSE tracks.single_confidence END,
				single_sources = CASE WHEN (tracks.user_override_mask & 64) = 0 THEN excluded.single_sources ELSE tracks.single_sources END,
				last_scanned_at = excluded.last_scanned_at,
				metadata_last_updated = excluded.metadata_last_updated
		`, t.ID, t.ArtistID, t.AlbumID, t.Title, t.TrackNumber, t.DiscNumber, t.DurationSeconds, t.ISRC,
			t.MusicBrainzRecordingID, t.SpotifyTrackID, t.SpotifyArtistID, t.SpotifyAlbumType, t.DiscogsReleaseID,
			wu.Album.IsCompilation, t.PopularityScore, t.GlobalPopularity, t.AlbumZScore, t.Stars, t.IsSingle,
			confidence, string(sourcesJSON), t.UserOverrideMask, t.LastScannedAt, time.Now()); err != nil {
			return &shared.PersistError{Op: "commit_track", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &shared.PersistError{Op: "commit_tx", Err: err}
	}
	return nil
}

// AppendScanHistory appends one scan-history row (spec §3, §7: written in a
// separate tiny transaction on PersistError so the failure itself is still
// logged).
func (s *Store) AppendScanHistory(ctx context.Context, h *shared.ScanHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_history (album_id, started_at, finished_at, outcome, tracks_scanned, singles_detected, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, h.AlbumID, h.StartedAt, h.FinishedAt, string(h.Outcome), h.TracksScanned, h.SinglesDetected, h.Error)
	if err != nil {
		return &shared.PersistError{Op: "append_scan_history", Err: err}
	}
	return nil
}

// LastOKScan returns the most recent 'ok' scan-history row for an album, or
// nil if none exists (spec §4.7 resume rule).
func (s *Store) LastOKScan(ctx context.Context, albumID string) (*shared.ScanHistory, error) {
	var h shared.ScanHistory
	var errStr sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT album_id, started_at, finished_at, outcome, tracks_scanned, singles_detected, error
		FROM scan_history
		WHERE album_id = ? AND outcome = 'ok'
		ORDER BY finished_at DESC LIMIT 1
	`, albumID).Scan(&h.AlbumID, &h.StartedAt, &h.FinishedAt, &h.Outcome, &h.TracksScanned, &h.SinglesDetected, &errStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &shared.PersistError{Op: "last_ok_scan", Err: err}
	}
	h.Error = errStr.String
	return &h, nil
}

// CacheGet reads a cached signal-provider payload. A row with a NULL payload
// is returned as found=true, payload=nil; the identity resolver stores its
// negative resolutions as the sentinel payload "__not_found__" instead.
func (s *Store) CacheGet(ctx context.Context, provider, key string) ([]byte, bool, error) {
	var payload []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT payload_json, expires_at FROM signal_cache WHERE provider = ? AND key = ?
	`, provider, key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &shared.PersistError{Op: "cache_get", Err: err}
	}
	if time.Now().After(expiresAt) {
		return nil, false, nil
	}
	return payload, true, nil
}

// CacheSet upserts a cached payload with a TTL in seconds (spec §4.3).
func (s *Store) CacheSet(ctx context.Context, provider, key string, payload []byte, ttlSeconds int64) error {
	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_cache (provider, key, payload_json, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider, key) DO UPDATE SET payload_json = excluded.payload_json, expires_at = excluded.expires_at
	`, provider, key, payload, expiresAt)
	if err != nil {
		return &shared.PersistError{Op: "cache_set", Err: err}
	}
	return nil
}

// quoteList is a small helper used by tests to build IN clauses; kept here
// rather than in the test file since it's a persistence-layer concern.
func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
