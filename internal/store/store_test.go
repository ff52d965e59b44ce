package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"albumscan/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "albumscan.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertArtist_InsertThenUpdateIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	artist := &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead", LastScannedAt: time.Now()}
	if err := st.UpsertArtist(ctx, artist); err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	// Second upsert with a newly resolved Spotify ID must not clobber other fields.
	artist.SpotifyArtistID = "sp123"
	if err := st.UpsertArtist(ctx, artist); err != nil {
		t.Fatalf("UpsertArtist() (update) error = %v", err)
	}

	got, err := st.GetArtistByNormalizedName(ctx, "radiohead")
	if err != nil {
		t.Fatalf("GetArtistByNormalizedName() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetArtistByNormalizedName() = nil, want row")
	}
	if got.SpotifyArtistID != "sp123" {
		t.Errorf("SpotifyArtistID = %q, want sp123", got.SpotifyArtistID)
	}
	if got.Name != "Radiohead" {
		t.Errorf("Name = %q, want Radiohead", got.Name)
	}
}

func TestUpsertArtist_PreservesExistingProviderIDWhenNewValueIsEmpty(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	artist := &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead", SpotifyArtistID: "sp123"}
	if err := st.UpsertArtist(ctx, artist); err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	reupsert := &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead"} // SpotifyArtistID empty
	if err := st.UpsertArtist(ctx, reupsert); err != nil {
		t.Fatalf("UpsertArtist() (re-upsert) error = %v", err)
	}

	got, err := st.GetArtistByNormalizedName(ctx, "radiohead")
	if err != nil {
		t.Fatalf("GetArtistByNormalizedName() error = %v", err)
	}
	if got.SpotifyArtistID != "sp123" {
		t.Errorf("SpotifyArtistID = %q, want preserved sp123", got.SpotifyArtistID)
	}
}

func TestGetArtistByNormalizedName_MissingReturnsNilNoError(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetArtistByNormalizedName(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetArtistByNormalizedName() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetArtistByNormalizedName() = %+v, want nil", got)
	}
}

func newWorkUnit() *shared.WorkUnit {
	dur := 240
	return &shared.WorkUnit{
		ArtistID:   "a1",
		ArtistName: "Radiohead",
		Album: shared.Album{
			ID: "al1", ArtistID: "a1", Title: "OK Computer", NormalizedTitle: "ok computer",
			AlbumType: shared.AlbumType("studio"), ReleaseYear: 1997, TotalTracks: 1,
		},
		Tracks: []shared.Track{
			{
				ID: "t1", ArtistID: "a1", AlbumID: "al1", Title: "Paranoid Android",
				TrackNumber: 1, DurationSeconds: &dur,
				PopularityScore: floatPtr(80), GlobalPopularity: floatPtr(80),
				Stars: intPtr(4), LastScannedAt: time.Now(),
			},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestCommitWorkUnit_PersistsAlbumAndTracksAtomically(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertArtist(ctx, &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead"}); err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	if err := st.CommitWorkUnit(ctx, newWorkUnit()); err != nil {
		t.Fatalf("CommitWorkUnit() error = %v", err)
	}

	var stars int
	var title string
	row := st.db.QueryRowContext(ctx, `SELECT title, stars FROM tracks WHERE id = ?`, "t1")
	if err := row.Scan(&title, &stars); err != nil {
		t.Fatalf("query track after commit: %v", err)
	}
	if title != "Paranoid Android" || stars != 4 {
		t.Errorf("title=%q stars=%d, want Paranoid Android/4", title, stars)
	}
}

// TestCommitWorkUnit_HonorsUserOverrideMask covers spec §4.7: a user who has
// hand-edited a track's star rating (bit 32) keeps that edit across a later
// rescan that would otherwise overwrite it.
func TestCommitWorkUnit_HonorsUserOverrideMask(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.UpsertArtist(ctx, &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead"})

	wu := newWorkUnit()
	if err := st.CommitWorkUnit(ctx, wu); err != nil {
		t.Fatalf("CommitWorkUnit() (first) error = %v", err)
	}

	// User manually overrides stars to 5 and the mask records that override.
	_, err := st.db.ExecContext(ctx, `UPDATE tracks SET stars = 5, user_override_mask = 32 WHERE id = 't1'`)
	if err != nil {
		t.Fatalf("manual override update: %v", err)
	}

	// Re-scan recomputes stars back to 3, but the override bit should win.
	rescan := newWorkUnit()
	rescan.Tracks[0].Stars = intPtr(3)
	if err := st.CommitWorkUnit(ctx, rescan); err != nil {
		t.Fatalf("CommitWorkUnit() (rescan) error = %v", err)
	}

	var stars int
	row := st.db.QueryRowContext(ctx, `SELECT stars FROM tracks WHERE id = ?`, "t1")
	if err := row.Scan(&stars); err != nil {
		t.Fatalf("query after rescan: %v", err)
	}
	if stars != 5 {
		t.Errorf("stars = %d, want 5 (user override preserved)", stars)
	}
}

func TestCommitWorkUnit_WithoutOverrideMaskAllowsRescanToUpdate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.UpsertArtist(ctx, &shared.Artist{ID: "a1", Name: "Radiohead", NormalizedName: "radiohead"})

	if err := st.CommitWorkUnit(ctx, newWorkUnit()); err != nil {
		t.Fatalf("CommitWorkUnit() (first) error = %v", err)
	}

	rescan := newWorkUnit()
	rescan.Tracks[0].Stars = intPtr(2)
	if err := st.CommitWorkUnit(ctx, rescan); err != nil {
		t.Fatalf("CommitWorkUnit() (rescan) error = %v", err)
	}

	var stars int
	row := st.db.QueryRowContext(ctx, `SELECT stars FROM tracks WHERE id = ?`, "t1")
	if err := row.Scan(&stars); err != nil {
		t.Fatalf("query after rescan: %v", err)
	}
	if stars != 2 {
		t.Errorf("stars = %d, want 2 (no override bit set, rescan should win)", stars)
	}
}

func TestAppendScanHistoryAndLastOKScan(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	older := &shared.ScanHistory{
		AlbumID: "al1", StartedAt: time.Now().Add(-2 * time.Hour), FinishedAt: time.Now().Add(-2 * time.Hour),
		Outcome: shared.OutcomeOK, TracksScanned: 10,
	}
	newer := &shared.ScanHistory{
		AlbumID: "al1", StartedAt: time.Now().Add(-1 * time.Hour), FinishedAt: time.Now().Add(-1 * time.Hour),
		Outcome: shared.OutcomeOK, TracksScanned: 12,
	}
	failed := &shared.ScanHistory{
		AlbumID: "al1", StartedAt: time.Now(), FinishedAt: time.Now(),
		Outcome: shared.OutcomeFailed, Error: "network timeout",
	}

	for _, h := range []*shared.ScanHistory{older, newer, failed} {
		if err := st.AppendScanHistory(ctx, h); err != nil {
			t.Fatalf("AppendScanHistory() error = %v", err)
		}
	}

	last, err := st.LastOKScan(ctx, "al1")
	if err != nil {
		t.Fatalf("LastOKScan() error = %v", err)
	}
	if last == nil {
		t.Fatal("LastOKScan() = nil, want the most recent ok scan")
	}
	if last.TracksScanned != 12 {
		t.Errorf("TracksScanned = %d, want 12 (the most recent ok scan, not the failed one)", last.TracksScanned)
	}
}

func TestLastOKScan_NoneReturnsNil(t *testing.T) {
	st := newTestStore(t)
	last, err := st.LastOKScan(context.Background(), "unknown-album")
	if err != nil {
		t.Fatalf("LastOKScan() error = %v", err)
	}
	if last != nil {
		t.Errorf("LastOKScan() = %+v, want nil", last)
	}
}

func TestCacheSetAndGet_RoundTripsAndRespectsTTL(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.CacheSet(ctx, "spotify", "artist:radiohead", []byte("sp123"), 3600); err != nil {
		t.Fatalf("CacheSet() error = %v", err)
	}

	payload, found, err := st.CacheGet(ctx, "spotify", "artist:radiohead")
	if err != nil {
		t.Fatalf("CacheGet() error = %v", err)
	}
	if !found || string(payload) != "sp123" {
		t.Errorf("CacheGet() = (%q, %v), want (sp123, true)", payload, found)
	}
}

func TestCacheGet_ExpiredEntryIsTreatedAsMiss(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.CacheSet(ctx, "discogs", "release:x", []byte("123"), -10); err != nil {
		t.Fatalf("CacheSet() error = %v", err)
	}

	_, found, err := st.CacheGet(ctx, "discogs", "release:x")
	if err != nil {
		t.Fatalf("CacheGet() error = %v", err)
	}
	if found {
		t.Error("CacheGet() found = true, want false for an already-expired entry")
	}
}

func TestCacheGet_MissingKeyReturnsNotFound(t *testing.T) {
	st := newTestStore(t)
	_, found, err := st.CacheGet(context.Background(), "spotify", "nope")
	if err != nil {
		t.Fatalf("CacheGet() error = %v", err)
	}
	if found {
		t.Error("CacheGet() found = true, want false")
	}
}

func TestQuoteList_EscapesEmbeddedQuotes(t *testing.T) {
	got := quoteList([]string{"a1", "o'brien"})
	want := `'a1', 'o''brien'`
	if got != want {
		t.Errorf("quoteList() = %s, want %s", got, want)
	}
}
