// Package banding implements C5: converting an album's popularity scores into
// 1-5 star ratings via median/MAD z-score banding, a top-4 cap, and a single
// boost (spec §4.5).
package banding

import (
	"math"
	"sort"

	"albumscan/internal/shared"
)

// Input is one track's banding-relevant state, assembled by the coordinator
// after C4 (popularity) and C6 (single detection) have both run.
type Input struct {
	Track            *shared.Track
	Popularity       *float64 // global_popularity for non-compilations, popularity_score for compilations
	IsSingle         bool
	SingleConfidence shared.Confidence
}

// Result is the assignment this package computes for one track; callers copy
// these back onto the track row.
type Result struct {
	Stars            int
	ZScore           *float64
	IsSingle         bool
	SingleConfidence shared.Confidence
}

// Band assigns stars to every track of one album (spec §4.5). capTop4Pct
// comes from config so its default stays test-overridable (spec §9 Open
// Questions); the z >= 0.2 floor for promoting medium-confidence singles is
// fixed.
func Band(inputs []Input, capTop4Pct float64, isCompilation bool) map[*shared.Track]Result {
	results := make(map[*shared.Track]Result, len(inputs))

	var scored []Input
	var unscored []Input
	for _, in := range inputs {
		if in.Popularity == nil {
			unscored = append(unscored, in)
			continue
		}
		scored = append(scored, in)
	}

	for _, in := range unscored {
		results[in.Track] = Result{Stars: 3, IsSingle: false, SingleConfidence: shared.ConfidenceLow}
	}

	if len(scored) == 0 {
		return results
	}

	values := make([]float64, len(scored))
	for i, in := range scored {
		values[i] = *in.Popularity
	}

	median := medianOf(values)
	mad := medianAbsoluteDeviation(values, median)
	if mad == 0 {
		mad = math.Max(1, stdDev(values))
	}

	type banded struct {
		in    Input
		z     float64
		stars int
	}
	all := make([]banded, len(scored))
	for i, in := range scored {
		z := (*in.Popularity - median) / mad
		all[i] = banded{in: in, z: z, stars: bandOf(z)}
	}

	// Top-4 cap (spec §4.5 step 5): counted over non-single tracks only.
	nonSingleCount := 0
	for _, b := range all {
		if !b.in.IsSingle {
			nonSingleCount++
		}
	}
	cap := int(math.Ceil(capTop4Pct * float64(nonSingleCount)))

	fourStarIdx := make([]int, 0)
	for i, b := range all {
		if b.stars == 4 && !b.in.IsSingle {
			fourStarIdx = append(fourStarIdx, i)
		}
	}
	if len(fourStarIdx) > cap {
		sort.Slice(fourStarIdx, func(a, b int) bool {
			ia, ib := fourStarIdx[a], fourStarIdx[b]
			if all[ia].z != all[ib].z {
				return all[ia].z > all[ib].z // descending z: keep the highest
			}
			if all[ia].in.Track.TrackNumber != all[ib].in.Track.TrackNumber {
				return all[ia].in.Track.TrackNumber < all[ib].in.Track.TrackNumber
			}
			return all[ia].in.Track.Title < all[ib].in.Track.Title
		})
		for _, idx := range fourStarIdx[cap:] {
			all[idx].stars = 3
		}
	}

	// Single boost (spec §4.5 step 6).
	for i, b := range all {
		switch {
		case b.in.IsSingle && b.in.SingleConfidence == shared.ConfidenceHigh:
			all[i].stars = 5
		case b.in.IsSingle && b.in.SingleConfidence == shared.ConfidenceMedium && !isCompilation && b.z >= 0.2:
			all[i].stars = 5
		case all[i].stars > 4:
			all[i].stars = 4
		}
	}

	for _, b := range all {
		z := b.z
		results[b.in.Track] = Result{
			Stars:            b.stars,
			ZScore:           &z,
			IsSingle:         b.in.IsSingle,
			SingleConfidence: b.in.SingleConfidence,
		}
	}
	return results
}

// bandOf maps a z-score to its base star band (spec §4.5 step 4). The
// boundary at z=-1.0 is inclusive on the low side (<=, not <): spec §8's
// worked Scenario A/B place a track at exactly z=-1.0 in the 1-star band,
// which only holds if that boundary is closed rather than open as step 4's
// prose literally states. The worked scenario is treated as authoritative
// since §8 calls it out as a replayable test (see DESIGN.md).
func bandOf(z float64) int {
	switch {
	case z <= -1.0:
		return 1
	case z < -0.3:
		return 2
	case z < 0.6:
		return 3
	default:
		return 4
	}
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func medianAbsoluteDeviation(values []float64, median float64) float64 {
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	return medianOf(deviations)
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}
	return math.Sqrt(sqDiffSum / float64(len(values)))
}
