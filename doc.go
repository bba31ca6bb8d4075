// Package fastpoint provides an embedding-augmented ingestion and hybrid
// retrieval layer between a vector-similarity store and a set of embedding
// providers.
//
// A Session selects up to one model per slot (dense text, image, sparse
// text), derives deterministic named vector fields from those selections,
// embeds documents and images into records, and runs single or batched
// queries, fusing dense and sparse rankings via reciprocal rank fusion when
// both are active.
//
// # Quick Start
//
//	ctx := context.Background()
//	st, _ := localstore.Open("")        // in-memory reference store
//	session := fastpoint.New(st)
//
//	ids, _ := session.Add(ctx, "docs", fastpoint.AddOptions{
//	    Documents: []string{"vector databases", "rank fusion"},
//	})
//
//	results, _ := session.Query(ctx, "docs",
//	    fastpoint.Text("how does fusion work"),
//	    fastpoint.QueryOptions{Limit: 5})
//
// # Hybrid Search
//
// Activating a sparse model alongside the dense one turns text queries into
// hybrid searches: both fields are searched in a single batched call and the
// two rankings are merged by reciprocal rank, so heterogeneous score scales
// never compare directly:
//
//	session.SetModel(ctx, "BAAI/bge-small-en")
//	session.SetSparseModel(ctx, "prithivida/Splade_PP_en_v1")
//	results, _ := session.Query(ctx, "docs", fastpoint.Text("fusion"), opts)
//
// # Field Naming
//
// Vector fields are derived purely from the model name: "BAAI/bge-small-en"
// always maps to "fast-bge-small-en", its sparse counterpart to
// "fast-sparse-<model>", images to "fast-image-<model>". A collection created
// by one session is compatible with any session selecting the same models.
//
// # Collections
//
// Add creates a missing collection from the active model bindings and
// validates an existing one against them; a width or distance mismatch fails
// before any point is written.
package fastpoint
