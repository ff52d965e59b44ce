package banding

import (
	"testing"

	"albumscan/internal/shared"
)

func floatPtr(v float64) *float64 { return &v }

func newTrack(title string, trackNumber int) *shared.Track {
	return &shared.Track{Title: title, TrackNumber: trackNumber}
}

// TestBand_ScenarioA_BasicBanding replays spec §8 Scenario A: three tracks at
// popularity 80/50/20 band to 4/3/1 stars with no single signals.
func TestBand_ScenarioA_BasicBanding(t *testing.T) {
	t1 := newTrack("T1", 1)
	t2 := newTrack("T2", 2)
	t3 := newTrack("T3", 3)

	inputs := []Input{
		{Track: t1, Popularity: floatPtr(80)},
		{Track: t2, Popularity: floatPtr(50)},
		{Track: t3, Popularity: floatPtr(20)},
	}

	results := Band(inputs, 0.5, false)

	if got := results[t1].Stars; got != 4 {
		t.Errorf("T1 stars = %d, want 4", got)
	}
	if got := results[t2].Stars; got != 3 {
		t.Errorf("T2 stars = %d, want 3", got)
	}
	if got := results[t3].Stars; got != 1 {
		t.Errorf("T3 stars = %d, want 1", got)
	}
	for _, tr := range []*shared.Track{t1, t2, t3} {
		if results[tr].IsSingle {
			t.Errorf("%s.IsSingle = true, want false", tr.Title)
		}
		if results[tr].SingleConfidence != shared.ConfidenceLow {
			t.Errorf("%s.SingleConfidence = %s, want low", tr.Title, results[tr].SingleConfidence)
		}
	}
}

// TestBand_ScenarioB_SingleBoost replays spec §8 Scenario B: T1 gains a
// high-confidence single classification and is promoted to 5 stars.
func TestBand_ScenarioB_SingleBoost(t *testing.T) {
	t1 := newTrack("T1", 1)
	t2 := newTrack("T2", 2)
	t3 := newTrack("T3", 3)

	inputs := []Input{
		{Track: t1, Popularity: floatPtr(80), IsSingle: true, SingleConfidence: shared.ConfidenceHigh},
		{Track: t2, Popularity: floatPtr(50)},
		{Track: t3, Popularity: floatPtr(20)},
	}

	results := Band(inputs, 0.5, false)

	if got := results[t1].Stars; got != 5 {
		t.Errorf("T1 stars = %d, want 5", got)
	}
	if !results[t1].IsSingle {
		t.Errorf("T1.IsSingle = false, want true")
	}
	if got := results[t2].Stars; got != 3 {
		t.Errorf("T2 stars = %d, want 3", got)
	}
	if got := results[t3].Stars; got != 1 {
		t.Errorf("T3 stars = %d, want 1", got)
	}
}

// TestBand_ScenarioC_Compilation checks that a compilation's tightly clustered
// local-popularity tracks still band (no crash on a tiny spread) and that no
// track is a single absent any source evidence.
func TestBand_ScenarioC_Compilation(t *testing.T) {
	pops := []float64{70, 72, 74, 76, 78, 80}
	var inputs []Input
	var tracks []*shared.Track
	for i, p := range pops {
		tr := newTrack("Hit", i+1)
		tracks = append(tracks, tr)
		inputs = append(inputs, Input{Track: tr, Popularity: floatPtr(p)})
	}

	results := Band(inputs, 0.25, true)

	for _, tr := range tracks {
		r, ok := results[tr]
		if !ok {
			t.Fatalf("track %d missing from results", tr.TrackNumber)
		}
		if r.Stars < 1 || r.Stars > 5 {
			t.Errorf("track %d stars = %d, out of range", tr.TrackNumber, r.Stars)
		}
		if r.IsSingle {
			t.Errorf("track %d classified as single with no evidence", tr.TrackNumber)
		}
	}
}

// TestBand_NullPopularityDefaultsToThreeStars covers spec §4.5 step 7: a
// track with no popularity score defaults to 3 stars, not-single, low
// confidence, regardless of the rest of the album.
func TestBand_NullPopularityDefaultsToThreeStars(t *testing.T) {
	scored := newTrack("Scored", 1)
	unscored := newTrack("Unscored", 2)

	inputs := []Input{
		{Track: scored, Popularity: floatPtr(90)},
		{Track: unscored, Popularity: nil},
	}

	results := Band(inputs, 0.25, false)

	r := results[unscored]
	if r.Stars != 3 || r.IsSingle || r.SingleConfidence != shared.ConfidenceLow {
		t.Errorf("unscored track = %+v, want {Stars:3 IsSingle:false Confidence:low}", r)
	}
}

// TestBand_TopFourCapDemotesExcessInZOrder covers spec §4.5 step 5: when more
// non-single tracks land in the 4-star band than the cap allows, the lowest-z
// excess tracks are demoted to 3 stars first.
func TestBand_TopFourCapDemotesExcessInZOrder(t *testing.T) {
	// Eight tracks: median = 47.5 and MAD = 37.5, so A-D land in the 4-star
	// band (z = 1.4, 1.27, 1.13, 1.0) and E-H at z = -1.0.
	// cap_top4_pct=0.25 over 8 non-single tracks -> cap = ceil(2.0) = 2.
	pops := map[string]float64{
		"A": 100, // highest popularity -> highest z
		"B": 95,
		"C": 90,
		"D": 85,
		"E": 10, // E-H drag the median down so A-D all land at z >= 0.6
		"F": 10,
		"G": 10,
		"H": 10,
	}
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	tracks := make(map[string]*shared.Track)
	var inputs []Input
	for i, name := range names {
		tr := newTrack(name, i+1)
		tracks[name] = tr
		inputs = append(inputs, Input{Track: tr, Popularity: floatPtr(pops[name])})
	}

	results := Band(inputs, 0.25, false)

	fourStarCount := 0
	for _, name := range []string{"A", "B", "C", "D"} {
		if results[tracks[name]].Stars == 4 {
			fourStarCount++
		}
	}
	if fourStarCount > 2 {
		t.Errorf("fourStarCount = %d, want <= 2 (cap)", fourStarCount)
	}
	// The highest-popularity tracks must be the ones kept at 4 stars.
	if results[tracks["A"]].Stars != 4 || results[tracks["B"]].Stars != 4 {
		t.Errorf("expected A and B (highest z) to retain 4 stars: A=%d B=%d",
			results[tracks["A"]].Stars, results[tracks["B"]].Stars)
	}
}

// TestBand_MediumConfidenceSingleRequiresNonCompilationAndPositiveZ covers
// spec §4.5 step 6's medium-confidence promotion conditions.
func TestBand_MediumConfidenceSingleRequiresNonCompilationAndPositiveZ(t *testing.T) {
	highZ := newTrack("HighZ", 1)
	lowZ := newTrack("LowZ", 2)
	filler := newTrack("Filler", 3)

	inputs := []Input{
		{Track: highZ, Popularity: floatPtr(90), IsSingle: true, SingleConfidence: shared.ConfidenceMedium},
		{Track: lowZ, Popularity: floatPtr(52), IsSingle: true, SingleConfidence: shared.ConfidenceMedium},
		{Track: filler, Popularity: floatPtr(10)},
	}

	results := Band(inputs, 1.0, false)

	if results[highZ].Stars != 5 {
		t.Errorf("highZ stars = %d, want 5 (medium confidence + z >= 0.2)", results[highZ].Stars)
	}
	if results[lowZ].Stars > 4 {
		t.Errorf("lowZ stars = %d, want capped at 4 (z below 0.2 threshold)", results[lowZ].Stars)
	}

	compResults := Band(inputs, 1.0, true)
	if compResults[highZ].Stars > 4 {
		t.Errorf("highZ stars on a compilation = %d, want capped at 4 (medium promotion needs a non-compilation album)", compResults[highZ].Stars)
	}
}

func TestBand_EmptyInputReturnsEmptyResult(t *testing.T) {
	results := Band(nil, 0.25, false)
	if len(results) != 0 {
		t.Errorf("expected empty result map, got %d entries", len(results))
	}
}
