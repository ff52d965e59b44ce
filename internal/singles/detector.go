// Package singles implements C6: per-track single detection, aggregating
// weighted evidence from multiple providers under compilation/live/unplugged
// context rules (spec §4.6). Deterministic: identical inputs always produce
// identical outputs (spec §4.6, testable property 2).
package singles

import (
	"regexp"
	"sort"
	"strings"

	"albumscan/internal/shared"
)

var nonSinglePattern = regexp.MustCompile(`(?i)\b(intro|outro|interlude|jam|skit)\b`)

// officialMarker and excludedMarker classify a Discogs video title for the
// "official video" source (spec §4.6 step 3).
var officialMarker = regexp.MustCompile(`(?i)\b(official|lyric)\b`)
var excludedVideoMarker = regexp.MustCompile(`(?i)\b(live|remix)\b`)

// Evidence is the per-track raw signal input C3 supplies for single detection.
type Evidence struct {
	SpotifyAlbumType        string // "single" | "album" | "compilation" | ""
	MusicBrainzPrimaryType  string // "single" | "album" | "ep" | ...
	DiscogsIsSingleFormat   bool
	DiscogsOfficialVideo    bool
	ReleaseTotalTracks      int // 0 = unknown
	LastFMTags              []string
}

// Result is C6's output for one track (spec §4.6).
type Result struct {
	IsSingle   bool
	Confidence shared.Confidence
	Sources    []string
}

type weightedSource struct {
	name   string
	weight int
	hit    bool
}

// Detect runs the full procedure for one track (spec §4.6 steps 1-5).
// albumZScore may be nil if popularity wasn't computed for this track;
// advancedMode gates the optional stricter step 5.
func Detect(title string, ctx shared.AlbumContext, ev Evidence, advancedMode bool, zScoreThreshold float64, albumZScore *float64) Result {
	// Step 1: pre-filter.
	if nonSinglePattern.MatchString(title) {
		return Result{IsSingle: false, Confidence: shared.ConfidenceHigh, Sources: nil}
	}

	// Step 1 (continued): hold the alternate-version match for the context
	// rule below (spec §4.6 step 1).
	isAlternate := shared.IsAlternateVersion(title)
	downgrade := false

	// Step 2: context rules.
	if ctx.IsCompilation {
		// Spotify/MusicBrainz historical-single classification on a
		// compilation doesn't indicate this track was issued as a single from
		// the compilation, so it's excluded; the other sources are kept.
		ev.SpotifyAlbumType = ""
		ev.MusicBrainzPrimaryType = ""
	}
	if ctx.IsLive || ctx.IsUnplugged {
		// Drop the Spotify/MusicBrainz studio-single signals; the other
		// sources are kept.
		ev.SpotifyAlbumType = ""
		ev.MusicBrainzPrimaryType = ""
	} else if isAlternate {
		// Studio album, but the track title itself marks an alternate
		// version (live, remix, acoustic, ...): treat as alternate and
		// downgrade the final confidence by one step.
		downgrade = true
	}

	// Step 3: weighted source evidence.
	sources := []weightedSource{
		{"spotify", 50, ev.SpotifyAlbumType == "single"},
		{"musicbrainz", 50, ev.MusicBrainzPrimaryType == "single"},
		{"discogs", 100, ev.DiscogsIsSingleFormat},
		{"discogs_video", 30, ev.DiscogsOfficialVideo},
		{"short_release", 15, ev.ReleaseTotalTracks > 0 && ev.ReleaseTotalTracks <= 2},
		{"lastfm_tag", 20, hasTag(ev.LastFMTags, "single")},
	}

	// Step 4: aggregate.
	total := 0
	hitCount := 0
	hasStrongHit := false
	var hitNames []string
	for _, s := range sources {
		if !s.hit {
			continue
		}
		total += s.weight
		hitCount++
		if s.weight >= 50 {
			hasStrongHit = true
		}
		hitNames = append(hitNames, s.name)
	}
	sort.Strings(hitNames)

	confidence := shared.ConfidenceLow
	switch {
	case total >= 100 && hitCount >= 2 && hasStrongHit:
		confidence = shared.ConfidenceHigh
	case total >= 50:
		confidence = shared.ConfidenceMedium
	}

	if downgrade {
		confidence = downgradeOneStep(confidence)
	}

	// Step 5: optional stricter gate.
	if advancedMode {
		metadataSingle := ev.SpotifyAlbumType == "single" || ev.MusicBrainzPrimaryType == "single"
		meetsZScore := albumZScore != nil && *albumZScore >= zScoreThreshold
		if !(metadataSingle && meetsZScore) {
			return Result{IsSingle: false, Confidence: shared.ConfidenceLow, Sources: hitNames}
		}
	}

	isSingle := confidence == shared.ConfidenceMedium || confidence == shared.ConfidenceHigh
	return Result{IsSingle: isSingle, Confidence: confidence, Sources: hitNames}
}

func downgradeOneStep(c shared.Confidence) shared.Confidence {
	switch c {
	case shared.ConfidenceHigh:
		return shared.ConfidenceMedium
	case shared.ConfidenceMedium:
		return shared.ConfidenceLow
	default:
		return shared.ConfidenceLow
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// IsOfficialVideoForTrack reports whether a Discogs video entry refers to this
// track and carries an "official"/"lyric" marker rather than a "live"/"remix"
// one (spec §4.6 step 3, Discogs official video source).
func IsOfficialVideoForTrack(videoTitle, trackTitle string) bool {
	normVideo := shared.NormalizeName(videoTitle)
	normTrack := shared.NormalizeName(trackTitle)
	if !strings.Contains(normVideo, normTrack) {
		return false
	}
	if excludedVideoMarker.MatchString(videoTitle) {
		return false
	}
	return officialMarker.MatchString(videoTitle)
}
