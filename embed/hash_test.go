package embed

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewHashBackend()

	t.Run("text embedding is deterministic and normalized", func(t *testing.T) {
		e, err := backend.NewTextEmbedder("BAAI/bge-small-en", Options{})
		require.NoError(t, err)

		a, err := e.EmbedQuery(ctx, "vector databases are useful")
		require.NoError(t, err)
		b, err := e.EmbedQuery(ctx, "vector databases are useful")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, 384)

		var norm float64
		for _, v := range a {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
	})

	t.Run("distinct texts get distinct vectors", func(t *testing.T) {
		e, err := backend.NewTextEmbedder("BAAI/bge-small-en", Options{})
		require.NoError(t, err)

		a, err := e.EmbedQuery(ctx, "alpha")
		require.NoError(t, err)
		b, err := e.EmbedQuery(ctx, "omega")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("lazy embed preserves order", func(t *testing.T) {
		e, err := backend.NewTextEmbedder("BAAI/bge-small-en", Options{})
		require.NoError(t, err)

		docs := []string{"one", "two", "three"}
		var got [][]float32
		for vec, err := range e.Embed(ctx, SliceSeq(docs), 0, 0) {
			require.NoError(t, err)
			got = append(got, vec)
		}
		require.Len(t, got, 3)

		for i, doc := range docs {
			want, err := e.EmbedQuery(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, want, got[i])
		}
	})

	t.Run("sparse indices are sorted and deduplicated", func(t *testing.T) {
		e, err := backend.NewSparseEmbedder("prithivida/Splade_PP_en_v1", Options{})
		require.NoError(t, err)

		sv, err := e.EmbedQuery(ctx, "fusion fusion fusion of sparse and dense search")
		require.NoError(t, err)
		require.NoError(t, sv.Validate())
		assert.True(t, slices.IsSorted(sv.Indices))

		seen := map[uint32]bool{}
		for _, idx := range sv.Indices {
			assert.False(t, seen[idx], "duplicate index %d", idx)
			seen[idx] = true
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := backend.NewTextEmbedder("unknown/model", Options{})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("model tables carry distances", func(t *testing.T) {
		for _, m := range backend.TextModels() {
			assert.NotEmpty(t, m.Name)
			assert.Greater(t, m.Dim, 0)
			assert.NotEmpty(t, m.Distance)
		}
	})
}
