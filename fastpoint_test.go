package fastpoint_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpoint/fastpoint"
	"github.com/fastpoint/fastpoint/embed"
	"github.com/fastpoint/fastpoint/model"
	"github.com/fastpoint/fastpoint/store/localstore"
	"github.com/fastpoint/fastpoint/testutil"
)

func newFakeSession(t *testing.T, backend *testutil.FakeBackend, opts ...fastpoint.Option) (*fastpoint.Session, *testutil.RecordingStore) {
	t.Helper()
	st, err := localstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	recording := testutil.NewRecordingStore(st)
	opts = append([]fastpoint.Option{
		fastpoint.WithRegistry(embed.NewRegistry(backend)),
	}, opts...)
	return fastpoint.New(recording, opts...), recording
}

func TestFieldNames(t *testing.T) {
	t.Run("derived from trailing path segment", func(t *testing.T) {
		assert.Equal(t, "fast-bge-small-en", fastpoint.DenseFieldName("BAAI/bge-small-en"))
		assert.Equal(t, "fast-image-clip-vit-b-32-vision", fastpoint.ImageFieldName("Qdrant/clip-ViT-B-32-vision"))
		assert.Equal(t, "fast-sparse-splade_pp_en_v1", fastpoint.SparseFieldName("prithivida/Splade_PP_en_v1"))
	})

	t.Run("pure and collision free", func(t *testing.T) {
		assert.Equal(t, fastpoint.DenseFieldName("a/m"), fastpoint.DenseFieldName("a/m"))
		assert.NotEqual(t, fastpoint.DenseFieldName("a/m1"), fastpoint.DenseFieldName("a/m2"))
	})

	t.Run("no model selected", func(t *testing.T) {
		assert.Empty(t, fastpoint.DenseFieldName(""))

		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		assert.Empty(t, session.VectorFieldName())
		assert.Empty(t, session.SparseVectorFieldName())
	})

	t.Run("session reflects selection", func(t *testing.T) {
		ctx := context.Background()
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))

		assert.Equal(t, "fast-dense", session.VectorFieldName())
		assert.Equal(t, "fast-sparse-sparse", session.SparseVectorFieldName())

		require.NoError(t, session.SetSparseModel(ctx, ""))
		assert.Empty(t, session.SparseVectorFieldName())
	})
}

func TestSessionAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("dense only ingest", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		ids, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"a", "b"},
		})
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.NotEqual(t, ids[0], ids[1])

		records := recording.Upserted()
		require.Len(t, records, 2)
		for i, rec := range records {
			assert.Equal(t, ids[i], rec.ID)
			require.Len(t, rec.Vectors, 1)
			assert.Contains(t, rec.Vectors, "fast-dense")
			assert.Equal(t, []string{"a", "b"}[i], rec.Payload["document"])
		}
	})

	t.Run("auto creates collection from bindings", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))

		_, err := session.Add(ctx, "fresh", fastpoint.AddOptions{Documents: []string{"x"}})
		require.NoError(t, err)

		schema, err := recording.GetCollection(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, 4, schema.Vectors["fast-dense"].Size)
		assert.Equal(t, model.DistanceCosine, schema.Vectors["fast-dense"].Distance)
		assert.Contains(t, schema.SparseVectors, "fast-sparse-sparse")
	})

	t.Run("promotes default dense model", func(t *testing.T) {
		st, err := localstore.Open("")
		require.NoError(t, err)
		defer st.Close()

		// Default registry is backed by the local hashing backend, which
		// supports DefaultDenseModel.
		session := fastpoint.New(st)
		ids, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"hello"}})
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, "fast-bge-small-en", session.VectorFieldName())
	})

	t.Run("supplied ids and metadata", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		ids, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"a", "b"},
			IDs:       []string{"one", "two"},
			Metadata:  []map[string]any{{"lang": "en"}, {"lang": "de"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, ids)

		records := recording.Upserted()
		require.Len(t, records, 2)
		assert.Equal(t, "en", records[0].Payload["lang"])
		assert.Equal(t, "de", records[1].Payload["lang"])
	})

	t.Run("shortest supplied sequence bounds the stream", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		ids, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"a", "b", "c"},
			IDs:       []string{"only", "two"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"only", "two"}, ids)
		assert.Len(t, recording.Upserted(), 2)
	})

	t.Run("short embedding stream aborts with alignment error", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.TruncateText = 2
		session, _ := newFakeSession(t, backend)
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"a", "b", "c"},
			IDs:       []string{"1", "2", "3"},
		})
		require.Error(t, err)

		var alignErr *fastpoint.AlignmentError
		require.ErrorAs(t, err, &alignErr)
		assert.Equal(t, 2, alignErr.Position)
		assert.ErrorIs(t, err, fastpoint.ErrMissingDocumentEmbedding)
	})

	t.Run("images require an image model", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{Images: []string{"x.png"}})
		assert.ErrorIs(t, err, fastpoint.ErrImageModelNotSet)
	})

	t.Run("image ingest stores image field and path", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetImageModel(ctx, "fake/image"))

		ids, err := session.Add(ctx, "pics", fastpoint.AddOptions{Images: []string{"a.png", "b.png"}})
		require.NoError(t, err)
		require.Len(t, ids, 2)

		records := recording.Upserted()
		require.Len(t, records, 2)
		assert.Contains(t, records[0].Vectors, "fast-image-image")
		assert.Equal(t, "a.png", records[0].Payload["image_path"])
	})

	t.Run("empty call is rejected", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{})
		assert.ErrorIs(t, err, fastpoint.ErrNoDocumentsOrImages)
	})

	t.Run("schema mismatch fails before upsert", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		// Declare the field with the wrong width.
		require.NoError(t, recording.CreateCollection(ctx, "docs",
			map[string]model.VectorParams{"fast-dense": {Size: 8, Distance: model.DistanceCosine}}, nil))

		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"a"}})
		var schemaErr *fastpoint.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "fast-dense", schemaErr.Field)
		assert.Empty(t, recording.Upserted())
	})

	t.Run("missing declared field fails validation", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))

		require.NoError(t, recording.CreateCollection(ctx, "docs",
			map[string]model.VectorParams{"fast-dense": {Size: 4, Distance: model.DistanceCosine}}, nil))

		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"a"}})
		var schemaErr *fastpoint.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "fast-sparse-sparse", schemaErr.Field)
	})
}

func TestSessionQuery(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, opts ...fastpoint.Option) (*fastpoint.Session, *testutil.RecordingStore) {
		t.Helper()
		session, recording := newFakeSession(t, testutil.NewFakeBackend(), opts...)
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))
		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"vector search", "rank fusion", "sparse retrieval"},
			IDs:       []string{"d1", "d2", "d3"},
		})
		require.NoError(t, err)
		return session, recording
	}

	t.Run("hybrid query fuses dense and sparse in one batch", func(t *testing.T) {
		session, recording := seed(t)

		results, err := session.Query(ctx, "docs", fastpoint.Text("rank fusion"), fastpoint.QueryOptions{Limit: 2})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.LessOrEqual(t, len(results), 2)

		seen := map[string]bool{}
		for _, r := range results {
			assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
			seen[r.ID] = true
		}

		batches := recording.SearchBatches()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 2)
		assert.Equal(t, "fast-dense", batches[0][0].Field)
		assert.Equal(t, "fast-sparse-sparse", batches[0][1].Field)
		assert.Nil(t, batches[0][0].Sparse)
		assert.NotNil(t, batches[0][1].Sparse)
	})

	t.Run("dense only query issues a single search", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"a", "b"}})
		require.NoError(t, err)

		results, err := session.Query(ctx, "docs", fastpoint.Text("a"), fastpoint.QueryOptions{Limit: 5})
		require.NoError(t, err)
		assert.NotEmpty(t, results)
		assert.Len(t, recording.Searches(), 1)
		assert.Empty(t, recording.SearchBatches())
	})

	t.Run("result echoes document and embeddings", func(t *testing.T) {
		session, _ := seed(t)

		results, err := session.Query(ctx, "docs", fastpoint.Text("rank fusion"), fastpoint.QueryOptions{Limit: 3})
		require.NoError(t, err)
		require.NotEmpty(t, results)

		r := results[0]
		assert.NotEmpty(t, r.Document)
		assert.Len(t, r.Embedding, 4)
		assert.NotNil(t, r.SparseEmbedding)
	})

	t.Run("explicit field pin is authoritative", func(t *testing.T) {
		session, recording := seed(t)

		_, err := session.Query(ctx, "docs", fastpoint.TextIn("fast-dense", "fusion"), fastpoint.QueryOptions{Limit: 1})
		require.NoError(t, err)

		batches := recording.SearchBatches()
		require.Len(t, batches, 1)
		assert.Equal(t, "fast-dense", batches[0][0].Field)
	})

	t.Run("ambiguous query", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		_, err := session.Query(ctx, "docs", fastpoint.Query{}, fastpoint.QueryOptions{})
		assert.ErrorIs(t, err, fastpoint.ErrAmbiguousQuery)
	})

	t.Run("sparse without dense", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))

		_, err := session.Query(ctx, "docs", fastpoint.Text("q"), fastpoint.QueryOptions{})
		assert.ErrorIs(t, err, fastpoint.ErrSparseWithoutDense)
	})

	t.Run("image query without image model", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		_, err := session.Query(ctx, "docs", fastpoint.Image("x.png"), fastpoint.QueryOptions{})
		assert.ErrorIs(t, err, fastpoint.ErrImageModelNotSet)
	})

	t.Run("image query searches the image field", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetImageModel(ctx, "fake/image"))
		_, err := session.Add(ctx, "pics", fastpoint.AddOptions{Images: []string{"a.png", "b.png"}})
		require.NoError(t, err)

		results, err := session.Query(ctx, "pics", fastpoint.Image("a.png"), fastpoint.QueryOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a.png", results[0].ImagePath)

		searches := recording.Searches()
		require.Len(t, searches, 1)
		assert.Equal(t, "fast-image-image", searches[0].Field)
	})
}

func TestSessionQueryBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("hybrid batch partitions positionally and preserves order", func(t *testing.T) {
		session, recording := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))
		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{
			Documents: []string{"alpha text", "beta text", "gamma text"},
			IDs:       []string{"d1", "d2", "d3"},
		})
		require.NoError(t, err)

		results, err := session.QueryBatch(ctx, "docs",
			[]fastpoint.Query{fastpoint.Text("alpha text"), fastpoint.Text("gamma text")},
			fastpoint.QueryOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)

		// Dispatch shape: one batched call of 2 dense then 2 sparse
		// requests (the ingest itself never calls SearchBatch).
		batches := recording.SearchBatches()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 4)
		assert.Equal(t, "fast-dense", batches[0][0].Field)
		assert.Equal(t, "fast-dense", batches[0][1].Field)
		assert.Equal(t, "fast-sparse-sparse", batches[0][2].Field)
		assert.Equal(t, "fast-sparse-sparse", batches[0][3].Field)

		for i, list := range results {
			assert.NotEmpty(t, list, "query %d", i)
			assert.LessOrEqual(t, len(list), 2)
		}
		// Each query's own document should top its fused list: the fake
		// embedder is deterministic, so an exact match dominates both
		// rankings.
		assert.Equal(t, "d1", results[0][0].ID)
		assert.Equal(t, "d3", results[1][0].ID)
	})

	t.Run("mixed modalities scatter back to input order", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetImageModel(ctx, "fake/image"))

		_, err := session.Add(ctx, "mixed", fastpoint.AddOptions{
			Documents: []string{"text entry"},
			Images:    []string{"pic.png"},
			IDs:       []string{"m1"},
		})
		require.NoError(t, err)

		results, err := session.QueryBatch(ctx, "mixed",
			[]fastpoint.Query{
				fastpoint.Image("pic.png"),
				fastpoint.Text("text entry"),
			},
			fastpoint.QueryOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.NotEmpty(t, results[0])
		require.NotEmpty(t, results[1])
		assert.Equal(t, "pic.png", results[0][0].ImagePath)
		assert.Equal(t, "text entry", results[1][0].Document)
	})

	t.Run("empty batch", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		results, err := session.QueryBatch(ctx, "docs", nil, fastpoint.QueryOptions{})
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("invalid query reports its position", func(t *testing.T) {
		session, _ := newFakeSession(t, testutil.NewFakeBackend())
		_, err := session.QueryBatch(ctx, "docs",
			[]fastpoint.Query{fastpoint.Text("ok"), {}}, fastpoint.QueryOptions{})
		require.ErrorIs(t, err, fastpoint.ErrAmbiguousQuery)
		assert.Contains(t, err.Error(), "query 1")
	})
}

func TestSessionMetricsAndIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("basic metrics observe operations", func(t *testing.T) {
		metrics := &fastpoint.BasicMetricsCollector{}
		session, _ := newFakeSession(t, testutil.NewFakeBackend(),
			fastpoint.WithMetricsCollector(metrics))
		require.NoError(t, session.SetModel(ctx, "fake/dense"))
		require.NoError(t, session.SetSparseModel(ctx, "fake/sparse"))

		_, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"a", "b"}})
		require.NoError(t, err)
		_, err = session.Query(ctx, "docs", fastpoint.Text("a"), fastpoint.QueryOptions{Limit: 2})
		require.NoError(t, err)

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.AddCount)
		assert.Equal(t, int64(2), stats.AddPoints)
		assert.Equal(t, int64(1), stats.QueryCount)
		assert.Equal(t, int64(1), stats.QueryHybrid)
		assert.Equal(t, int64(1), stats.FusionCount)
	})

	t.Run("custom id generator", func(t *testing.T) {
		var n int
		session, _ := newFakeSession(t, testutil.NewFakeBackend(),
			fastpoint.WithIDGenerator(func() string {
				n++
				return fmt.Sprintf("id-%d", n)
			}))
		require.NoError(t, session.SetModel(ctx, "fake/dense"))

		ids, err := session.Add(ctx, "docs", fastpoint.AddOptions{Documents: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-1", "id-2"}, ids)
	})
}
