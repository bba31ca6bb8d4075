package embed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpoint/fastpoint/embed"
	"github.com/fastpoint/fastpoint/testutil"
)

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("memoizes provider per model", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		registry := embed.NewRegistry(backend)

		first, err := registry.ResolveText(ctx, "fake/dense")
		require.NoError(t, err)
		second, err := registry.ResolveText(ctx, "fake/dense")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int64(1), backend.TextConstructions.Load())
	})

	t.Run("failed resolve does not evict cache", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		registry := embed.NewRegistry(backend)

		cached, err := registry.ResolveText(ctx, "fake/dense")
		require.NoError(t, err)

		_, err = registry.ResolveText(ctx, "no/such-model")
		require.ErrorIs(t, err, embed.ErrUnsupportedModel)

		again, err := registry.ResolveText(ctx, "fake/dense")
		require.NoError(t, err)
		assert.Same(t, cached, again)
		assert.Equal(t, int64(1), backend.TextConstructions.Load())
	})

	t.Run("unsupported model", func(t *testing.T) {
		registry := embed.NewRegistry(testutil.NewFakeBackend())

		_, err := registry.ResolveText(ctx, "unknown/model")
		assert.ErrorIs(t, err, embed.ErrUnsupportedModel)

		_, err = registry.ResolveSparse(ctx, "unknown/model")
		assert.ErrorIs(t, err, embed.ErrUnsupportedModel)
	})

	t.Run("nil backend", func(t *testing.T) {
		registry := embed.NewRegistry(nil)
		assert.False(t, registry.Available())

		_, err := registry.ResolveText(ctx, "fake/dense")
		assert.ErrorIs(t, err, embed.ErrBackendUnavailable)

		_, err = registry.TextParams("fake/dense")
		assert.ErrorIs(t, err, embed.ErrBackendUnavailable)
	})

	t.Run("params reports model contract", func(t *testing.T) {
		registry := embed.NewRegistry(testutil.NewFakeBackend())

		info, err := registry.TextParams("fake/dense")
		require.NoError(t, err)
		assert.Equal(t, 4, info.Dim)

		_, err = registry.SparseParams("fake/sparse")
		assert.NoError(t, err)
	})

	t.Run("slots are independent", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		registry := embed.NewRegistry(backend)

		_, err := registry.ResolveText(ctx, "fake/dense")
		require.NoError(t, err)
		_, err = registry.ResolveImage(ctx, "fake/image")
		require.NoError(t, err)
		_, err = registry.ResolveSparse(ctx, "fake/sparse")
		require.NoError(t, err)

		assert.Equal(t, int64(1), backend.TextConstructions.Load())
		assert.Equal(t, int64(1), backend.ImageConstructions.Load())
		assert.Equal(t, int64(1), backend.SparseConstructions.Load())
	})
}
