// Package popularity implements C4: fusing per-track raw provider signals
// into one popularity_score, and deriving global_popularity across alternate
// versions of the same recording (spec §4.4).
package popularity

import (
	"math"
	"strings"
	"time"

	"albumscan/internal/config"
	"albumscan/internal/shared"
)

// Signals is the raw per-track input to fusion. Nil/zero pointer fields mean
// "source unavailable", distinct from a genuine zero value (spec §4.4:
// "explicit handling of missing sources").
type Signals struct {
	SpotifyPopularity *float64 // already 0-100
	LastFMPlayCount    *int64
	ListenBrainzCount  *int64
	ReleaseYear        int
	ScanYear           int
}

// GlobalMaxSeen tracks the adaptive Last.fm/ListenBrainz normalization cap
// (spec §4.4: "initialize at 1e7, raise on observation"). One instance is
// shared across a scan run.
type GlobalMaxSeen struct {
	value float64
}

// NewGlobalMaxSeen returns a tracker seeded at the documented initial cap.
func NewGlobalMaxSeen() *GlobalMaxSeen {
	return &GlobalMaxSeen{value: 1e7}
}

func (g *GlobalMaxSeen) observe(count int64) {
	if float64(count) > g.value {
		g.value = float64(count)
	}
}

func (g *GlobalMaxSeen) Value() float64 { return g.value }

// Fuse computes popularity_score for one track (spec §4.4). Returns nil if
// every source is missing.
func Fuse(weights config.Weights, s Signals, maxSeen *GlobalMaxSeen) *float64 {
	type weighted struct {
		value  float64
		weight float64
	}
	var present []weighted

	if s.SpotifyPopularity != nil {
		present = append(present, weighted{*s.SpotifyPopularity, weights.Spotify})
	}
	if s.LastFMPlayCount != nil {
		maxSeen.observe(*s.LastFMPlayCount)
		present = append(present, weighted{logNormalize(*s.LastFMPlayCount, maxSeen.Value()), weights.LastFM})
	}
	if s.ListenBrainzCount != nil {
		maxSeen.observe(*s.ListenBrainzCount)
		present = append(present, weighted{logNormalize(*s.ListenBrainzCount, maxSeen.Value()), weights.ListenBrainz})
	}
	if s.ReleaseYear > 0 {
		present = append(present, weighted{ageFactor(s.ReleaseYear, s.ScanYear), weights.Age})
	}

	if len(present) == 0 {
		return nil
	}

	var weightSum float64
	for _, p := range present {
		weightSum += p.weight
	}
	if weightSum == 0 {
		// Every present source carries zero configured weight; nothing to fuse.
		return nil
	}

	var score float64
	for _, p := range present {
		score += p.value * (p.weight / weightSum)
	}
	score = clamp(score, 0, 100)
	return &score
}

// logNormalize implements the documented log-transform normalization shared
// by Last.fm and ListenBrainz (spec §4.4).
func logNormalize(count int64, globalMaxSeen float64) float64 {
	if count < 0 {
		count = 0
	}
	return clamp(100*math.Log10(1+float64(count))/math.Log10(1+globalMaxSeen), 0, 100)
}

// ageFactor implements the release-age normalization (spec §4.4).
func ageFactor(releaseYear, scanYear int) float64 {
	years := float64(scanYear - releaseYear)
	if years < 0 {
		years = 0
	}
	return clamp(100*(1-years/50), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// alternateVersionKey returns the recording-identity key used to group
// alternate versions for global_popularity (spec §4.4, GLOSSARY "Global
// popularity"): ISRC if present, otherwise normalized title + duration bucket.
func alternateVersionKey(track *shared.Track) string {
	if track.ISRC != "" {
		return "isrc:" + track.ISRC
	}
	title := canonicalTitle(track.Title)
	durBucket := 0
	if track.DurationSeconds != nil {
		durBucket = *track.DurationSeconds / 3
	}
	return "title:" + shared.NormalizeName(title) + ":" + itoa(durBucket)
}

// canonicalTitle strips a trailing alternate-version parenthetical so "Song
// (Remix)" and "Song" group under the same key once the remix itself is
// filtered from the max (spec §4.4).
func canonicalTitle(title string) string {
	idx := strings.LastIndex(title, "(")
	if idx <= 0 {
		return title
	}
	return strings.TrimSpace(title[:idx])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ComputeGlobalPopularity sets GlobalPopularity on every track in the slice to
// the maximum popularity_score among its group of canonical (non-alternate)
// versions (spec §4.4). Alternate-version tracks (per shared.IsAlternateVersion)
// are excluded from contributing to the max but still receive the group's max
// as their own global_popularity once computed.
func ComputeGlobalPopularity(tracks []*shared.Track) {
	groups := make(map[string][]*shared.Track)
	for _, t := range tracks {
		key := alternateVersionKey(t)
		groups[key] = append(groups[key], t)
	}

	for _, group := range groups {
		var max float64
		hasMax := false
		for _, t := range group {
			if t.PopularityScore == nil || shared.IsAlternateVersion(t.Title) {
				continue
			}
			if !hasMax || *t.PopularityScore > max {
				max = *t.PopularityScore
				hasMax = true
			}
		}
		if !hasMax {
			// every member is an alternate version or missing popularity; fall
			// back to each track's own score.
			for _, t := range group {
				if t.PopularityScore != nil {
					v := *t.PopularityScore
					t.GlobalPopularity = &v
				}
			}
			continue
		}
		v := max
		for _, t := range group {
			t.GlobalPopularity = &v
		}
	}
}

// ScanYear is a small helper so callers avoid importing time directly just to
// stamp Signals.ScanYear.
func ScanYear() int { return time.Now().Year() }
