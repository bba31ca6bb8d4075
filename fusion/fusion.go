// Package fusion merges independently ranked result lists into one ranking.
package fusion

import (
	"slices"

	"github.com/fastpoint/fastpoint/model"
)

// DefaultK is the standard reciprocal-rank smoothing constant.
const DefaultK = 60

// ReciprocalRankFusion merges ranked hit lists into one list ordered by
// combined reciprocal-rank score. Each hit at 0-based position p of a list
// contributes 1/(k+p+1) to its id; contributions across lists sum, so an id
// appearing in several lists is collapsed to a single fused hit. Ties break
// by first appearance across the lists in the order supplied, and payload
// and vector fields are taken from the first list containing the id.
//
// Fusion operates purely on rank position, never on raw scores: that is
// what makes heterogeneous metrics (cosine similarity vs. sparse dot
// product) commensurable. The output never exceeds limit; k <= 0 selects
// DefaultK.
func ReciprocalRankFusion(lists [][]model.ScoredPoint, limit, k int) []model.ScoredPoint {
	if k <= 0 {
		k = DefaultK
	}

	type fused struct {
		point model.ScoredPoint
		score float32
		seen  int
	}

	byID := make(map[string]*fused)
	var order []*fused
	for _, list := range lists {
		for pos, hit := range list {
			contribution := float32(1) / float32(k+pos+1)
			f, ok := byID[hit.ID]
			if !ok {
				f = &fused{point: hit, seen: len(order)}
				byID[hit.ID] = f
				order = append(order, f)
			}
			f.score += contribution
		}
	}

	slices.SortStableFunc(order, func(a, b *fused) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return a.seen - b.seen
		}
	})

	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]model.ScoredPoint, len(order))
	for i, f := range order {
		p := f.point
		p.Score = f.score
		out[i] = p
	}
	return out
}
