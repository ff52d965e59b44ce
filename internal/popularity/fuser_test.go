package popularity

import (
	"math"
	"testing"

	"albumscan/internal/config"
	"albumscan/internal/shared"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func i(v int) *int           { return &v }

func TestFuse_AllSourcesPresentWeightedAverage(t *testing.T) {
	weights := config.DefaultWeights()
	maxSeen := NewGlobalMaxSeen()

	got := Fuse(weights, Signals{
		SpotifyPopularity: f64(80),
		LastFMPlayCount:   i64(1_000_000),
		ReleaseYear:       2020,
		ScanYear:          2026,
	}, maxSeen)

	if got == nil {
		t.Fatal("Fuse returned nil, want a score")
	}
	if *got < 0 || *got > 100 {
		t.Errorf("score = %f, out of [0,100] range", *got)
	}
}

// TestFuse_MissingSourceRenormalizes covers spec §4.4 testable property 8 /
// Scenario D: when ListenBrainz (weight 0 by default, so use LastFM absence
// instead) is unavailable, the remaining present weights are renormalized
// rather than silently zero-filled.
func TestFuse_MissingSourceRenormalizes(t *testing.T) {
	weights := config.Weights{Spotify: 0.3, LastFM: 0.5, ListenBrainz: 0.0, Age: 0.2}
	maxSeen := NewGlobalMaxSeen()

	// Only Spotify present: renormalized weight should be 1.0 (the full score).
	onlySpotify := Fuse(weights, Signals{SpotifyPopularity: f64(80)}, maxSeen)
	if onlySpotify == nil {
		t.Fatal("expected a score with Spotify present")
	}
	if math.Abs(*onlySpotify-80) > 1e-9 {
		t.Errorf("onlySpotify = %f, want 80 (renormalized to 100%% weight)", *onlySpotify)
	}
}

func TestFuse_NoSourcesReturnsNil(t *testing.T) {
	weights := config.DefaultWeights()
	maxSeen := NewGlobalMaxSeen()
	got := Fuse(weights, Signals{}, maxSeen)
	if got != nil {
		t.Errorf("Fuse with no sources = %v, want nil", *got)
	}
}

func TestFuse_AllZeroWeightsReturnsNil(t *testing.T) {
	weights := config.Weights{Spotify: 0, LastFM: 0, ListenBrainz: 0, Age: 0}
	maxSeen := NewGlobalMaxSeen()
	got := Fuse(weights, Signals{SpotifyPopularity: f64(50)}, maxSeen)
	if got != nil {
		t.Errorf("Fuse with all-zero weights = %v, want nil", *got)
	}
}

func TestLogNormalize_MonotonicAndBounded(t *testing.T) {
	maxSeen := 1e7
	low := logNormalize(100, maxSeen)
	high := logNormalize(1_000_000, maxSeen)
	if !(low < high) {
		t.Errorf("logNormalize(100) = %f, logNormalize(1e6) = %f, want monotonic increase", low, high)
	}
	if logNormalize(0, maxSeen) != 0 {
		t.Errorf("logNormalize(0) = %f, want 0", logNormalize(0, maxSeen))
	}
	if v := logNormalize(int64(maxSeen), maxSeen); math.Abs(v-100) > 1e-6 {
		t.Errorf("logNormalize(maxSeen) = %f, want ~100", v)
	}
}

func TestGlobalMaxSeen_RaisesOnObservationNeverLowers(t *testing.T) {
	g := NewGlobalMaxSeen()
	if g.Value() != 1e7 {
		t.Fatalf("initial value = %f, want 1e7", g.Value())
	}
	g.observe(5e7)
	if g.Value() != 5e7 {
		t.Errorf("after observing 5e7, value = %f, want 5e7", g.Value())
	}
	g.observe(10)
	if g.Value() != 5e7 {
		t.Errorf("after observing a smaller count, value = %f, want unchanged 5e7", g.Value())
	}
}

func TestAgeFactor_NewerIsHigherNeverNegativeYears(t *testing.T) {
	newer := ageFactor(2025, 2026)
	older := ageFactor(1990, 2026)
	if !(newer > older) {
		t.Errorf("ageFactor(2025) = %f, ageFactor(1990) = %f, want newer > older", newer, older)
	}
	// Future release year (clock skew / pre-release metadata) must not go negative.
	future := ageFactor(2030, 2026)
	if future < 0 || future > 100 {
		t.Errorf("ageFactor(future) = %f, want within [0,100]", future)
	}
}

func TestComputeGlobalPopularity_GroupsByISRCAndTakesMax(t *testing.T) {
	studio := &shared.Track{Title: "Song", ISRC: "US1234567890", PopularityScore: f64(40)}
	remix := &shared.Track{Title: "Song (Remix)", ISRC: "US1234567890", PopularityScore: f64(90)}

	ComputeGlobalPopularity([]*shared.Track{studio, remix})

	if studio.GlobalPopularity == nil || *studio.GlobalPopularity != 40 {
		t.Errorf("studio.GlobalPopularity = %v, want 40 (max across the ISRC group's non-alternate versions)", studio.GlobalPopularity)
	}
	if remix.GlobalPopularity == nil || *remix.GlobalPopularity != 40 {
		t.Errorf("remix.GlobalPopularity = %v, want 40 (the group's value, not its own 90)", remix.GlobalPopularity)
	}
}

func TestComputeGlobalPopularity_GroupsByTitleAndDurationWithoutISRC(t *testing.T) {
	a := &shared.Track{Title: "Song", DurationSeconds: i(200), PopularityScore: f64(30)}
	b := &shared.Track{Title: "Song", DurationSeconds: i(200), PopularityScore: f64(70)}

	ComputeGlobalPopularity([]*shared.Track{a, b})

	if *a.GlobalPopularity != 70 || *b.GlobalPopularity != 70 {
		t.Errorf("a=%v b=%v, want both at 70 (same duration bucket)", *a.GlobalPopularity, *b.GlobalPopularity)
	}
}

func TestComputeGlobalPopularity_AllAlternatesFallsBackToOwnScore(t *testing.T) {
	remixOnly := &shared.Track{Title: "Song (Remix)", ISRC: "X1", PopularityScore: f64(55)}

	ComputeGlobalPopularity([]*shared.Track{remixOnly})

	if remixOnly.GlobalPopularity == nil || *remixOnly.GlobalPopularity != 55 {
		t.Errorf("GlobalPopularity = %v, want fallback to own score 55", remixOnly.GlobalPopularity)
	}
}

func TestComputeGlobalPopularity_MissingPopularityScoreLeavesGlobalNil(t *testing.T) {
	unscored := &shared.Track{Title: "Unscored", ISRC: "Y1"}
	ComputeGlobalPopularity([]*shared.Track{unscored})
	if unscored.GlobalPopularity != nil {
		t.Errorf("GlobalPopularity = %v, want nil", unscored.GlobalPopularity)
	}
}
