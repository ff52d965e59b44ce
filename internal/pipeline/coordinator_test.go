package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"albumscan/internal/config"
	"albumscan/internal/identity"
	"albumscan/internal/interfaces"
	"albumscan/internal/progress"
	"albumscan/internal/shared"
	"albumscan/internal/store"
)

// fakeMusicServer is a tiny in-memory stand-in for the spec §6 music-server
// client, grounded on the teacher's service-container test pattern of wiring
// fakes directly against the interfaces package rather than a mock framework.
type fakeMusicServer struct {
	artists []interfaces.MusicServerArtist
	albums  map[string][]interfaces.MusicServerAlbum
	tracks  map[string][]interfaces.MusicServerItem
	ratings map[string]int

	listTracksCalls int
}

func (f *fakeMusicServer) ListArtists(ctx context.Context) ([]interfaces.MusicServerArtist, error) {
	return f.artists, nil
}

func (f *fakeMusicServer) ListAlbums(ctx context.Context, artistID string) ([]interfaces.MusicServerAlbum, error) {
	return f.albums[artistID], nil
}

func (f *fakeMusicServer) ListTracks(ctx context.Context, albumID string) ([]interfaces.MusicServerItem, error) {
	f.listTracksCalls++
	return f.tracks[albumID], nil
}

func (f *fakeMusicServer) SetRating(ctx context.Context, trackID string, stars int) error {
	if f.ratings == nil {
		f.ratings = make(map[string]int)
	}
	f.ratings[trackID] = stars
	return nil
}

func newFixtureServer() *fakeMusicServer {
	return &fakeMusicServer{
		artists: []interfaces.MusicServerArtist{{ID: "ar1", Name: "A"}},
		albums: map[string][]interfaces.MusicServerAlbum{
			"ar1": {{ID: "al1", Title: "X", TrackCount: 3}},
		},
		tracks: map[string][]interfaces.MusicServerItem{
			"al1": {
				{ID: "t1", Title: "T1", TrackNo: 1, Duration: 200, Artist: "A", Album: "X"},
				{ID: "t2", Title: "T2", TrackNo: 2, Duration: 200, Artist: "A", Album: "X"},
				{ID: "t3", Title: "T3", TrackNo: 3, Duration: 200, Artist: "A", Album: "X"},
			},
		},
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store, *fakeMusicServer) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "albumscan.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ms := newFixtureServer()
	cfg := config.DefaultConfig()
	progressPath := filepath.Join(t.TempDir(), "progress.json")
	reporter := progress.New(progressPath)
	idResolver := identity.New(nil, nil, nil, st)
	warnings := shared.NewWarningCollector(true)
	logger := shared.NewLogger()

	c := New(ms, Providers{}, idResolver, st, reporter, logger, warnings, cfg)
	return c, st, ms
}

// With every provider disabled, every track has no signal at all: spec §4.4
// "if all sources missing, popularity_score = NULL" and the track defaults to
// 3 stars / is_single=false / confidence=low (spec §4.5 step 7).
func TestRun_NoProviders_DefaultsToThreeStarNullPopularity(t *testing.T) {
	c, st, ms := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, id := range []string{"t1", "t2", "t3"} {
		if got, want := ms.ratings[id], 3; got != want {
			t.Errorf("rating for %s = %d, want %d", id, got, want)
		}
	}

	last, err := st.LastOKScan(ctx, "al1")
	if err != nil {
		t.Fatalf("LastOKScan() error = %v", err)
	}
	if last == nil {
		t.Fatal("LastOKScan() = nil, want an ok scan_history row")
	}
	if last.Outcome != shared.OutcomeOK {
		t.Errorf("Outcome = %q, want ok", last.Outcome)
	}
	if last.TracksScanned != 3 {
		t.Errorf("TracksScanned = %d, want 3", last.TracksScanned)
	}
}

// Testable property 5 (spec §8): resuming a fully-completed scan with
// force=false issues zero provider requests for the fresh album. ListTracks
// is the coordinator's only per-album fetch against the music server
// (buildWorkUnit), so its call count is a direct proxy for "did this album's
// fetch phase run at all."
func TestRun_ResumeSkipsFreshAlbum(t *testing.T) {
	c, _, ms := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	callsAfterFirst := ms.listTracksCalls

	if err := c.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if ms.listTracksCalls != callsAfterFirst {
		t.Errorf("ListTracks calls grew from %d to %d on a resumed run, want unchanged", callsAfterFirst, ms.listTracksCalls)
	}
}

// force=true bypasses the freshness filter and rescans even a just-completed
// album (spec §4.7 resume rule, §8 Scenario E).
func TestRun_ForceRescansFreshAlbum(t *testing.T) {
	c, _, ms := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	callsAfterFirst := ms.listTracksCalls

	c.Config.Features.Force = true
	if err := c.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if ms.listTracksCalls <= callsAfterFirst {
		t.Errorf("ListTracks calls = %d after forced rescan, want > %d", ms.listTracksCalls, callsAfterFirst)
	}
}
