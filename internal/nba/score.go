// Package nba scores and ranks Next Best Action recommendations.
package nba

import (
	"sort"

	"github.com/i474232898/cropple-dashboard/internal/farm"
)

const (
	UrgencyWeight     = 3
	ROIWeight         = 2
	FeasibilityWeight = 1

	// MaxScore is the score of a recommendation rated 10 on every axis.
	MaxScore = 10 * (UrgencyWeight + ROIWeight + FeasibilityWeight)
)

// Priority buckets.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// Score returns Urgency×3 + ROI×2 + Feasibility with every input clamped to 1..10.
func Score(r farm.Recommendation) float64 {
	return float64(clamp(r.Urgency)*UrgencyWeight + clamp(r.ROI)*ROIWeight + clamp(r.Feasibility)*FeasibilityWeight)
}

// PriorityFor buckets a score into high (>= 75% of MaxScore), medium (>= 50%) or low.
func PriorityFor(score float64) string {
	switch {
	case score >= 0.75*MaxScore:
		return PriorityHigh
	case score >= 0.5*MaxScore:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Rank returns a scored copy of recs sorted by score descending, ties by title.
// Recommendations without any rating keep the score the upstream assigned.
func Rank(recs []farm.Recommendation) []farm.Recommendation {
	out := make([]farm.Recommendation, len(recs))
	copy(out, recs)
	for i := range out {
		r := &out[i]
		if r.Urgency != 0 || r.ROI != 0 || r.Feasibility != 0 || r.Score == 0 {
			r.Score = Score(*r)
		}
		if r.Priority == "" {
			r.Priority = PriorityFor(r.Score)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// Top returns at most n ranked recommendations; n <= 0 means all.
func Top(recs []farm.Recommendation, n int) []farm.Recommendation {
	ranked := Rank(recs)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
