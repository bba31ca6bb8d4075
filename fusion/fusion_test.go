package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpoint/fastpoint/model"
)

func TestReciprocalRankFusion(t *testing.T) {
	t.Run("id in both lists ranks first", func(t *testing.T) {
		dense := []model.ScoredPoint{{ID: "A", Score: 0.9}, {ID: "B", Score: 0.8}}
		sparse := []model.ScoredPoint{{ID: "B", Score: 12.0}, {ID: "C", Score: 7.5}}

		fused := ReciprocalRankFusion([][]model.ScoredPoint{dense, sparse}, 3, DefaultK)

		require.Len(t, fused, 3)
		assert.Equal(t, "B", fused[0].ID)
		// A precedes C: equal contribution 1/(k+1) vs 1/(k+2).
		assert.Equal(t, "A", fused[1].ID)
		assert.Equal(t, "C", fused[2].ID)
	})

	t.Run("duplicates collapse to one hit", func(t *testing.T) {
		lists := [][]model.ScoredPoint{
			{{ID: "x"}, {ID: "y"}},
			{{ID: "x"}, {ID: "y"}},
		}
		fused := ReciprocalRankFusion(lists, 10, DefaultK)
		require.Len(t, fused, 2)
	})

	t.Run("respects limit", func(t *testing.T) {
		lists := [][]model.ScoredPoint{
			{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		}
		fused := ReciprocalRankFusion(lists, 2, DefaultK)
		assert.Len(t, fused, 2)
	})

	t.Run("fused score sums contributions", func(t *testing.T) {
		lists := [][]model.ScoredPoint{
			{{ID: "x"}},
			{{ID: "x"}},
		}
		fused := ReciprocalRankFusion(lists, 1, 60)
		require.Len(t, fused, 1)
		assert.InDelta(t, 2.0/61.0, float64(fused[0].Score), 1e-6)
	})

	t.Run("ties break by first appearance", func(t *testing.T) {
		lists := [][]model.ScoredPoint{
			{{ID: "first"}},
			{{ID: "second"}},
		}
		fused := ReciprocalRankFusion(lists, 2, DefaultK)
		require.Len(t, fused, 2)
		assert.Equal(t, "first", fused[0].ID)
		assert.Equal(t, "second", fused[1].ID)
	})

	t.Run("payload comes from first list containing the id", func(t *testing.T) {
		dense := []model.ScoredPoint{{ID: "p", Payload: map[string]any{"src": "dense"}}}
		sparse := []model.ScoredPoint{{ID: "p", Payload: map[string]any{"src": "sparse"}}}

		fused := ReciprocalRankFusion([][]model.ScoredPoint{dense, sparse}, 1, DefaultK)
		require.Len(t, fused, 1)
		assert.Equal(t, "dense", fused[0].Payload["src"])
	})

	t.Run("single list passes through re-scored", func(t *testing.T) {
		lists := [][]model.ScoredPoint{
			{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.4}},
		}
		fused := ReciprocalRankFusion(lists, 10, DefaultK)
		require.Len(t, fused, 2)
		assert.Equal(t, "a", fused[0].ID)
		assert.Greater(t, fused[0].Score, fused[1].Score)
	})

	t.Run("negative k selects default", func(t *testing.T) {
		lists := [][]model.ScoredPoint{{{ID: "a"}}}
		fused := ReciprocalRankFusion(lists, 1, -1)
		require.Len(t, fused, 1)
		assert.InDelta(t, 1.0/61.0, float64(fused[0].Score), 1e-6)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, ReciprocalRankFusion(nil, 5, DefaultK))
		assert.Empty(t, ReciprocalRankFusion([][]model.ScoredPoint{{}, {}}, 5, DefaultK))
	})
}
