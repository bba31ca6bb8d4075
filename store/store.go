// Package store declares the narrow contract the fastpoint session consumes
// from a vector-similarity store. Point storage, index structures, distance
// computation, and transport are the implementation's concern; the session
// only creates/inspects collections, upserts record streams, and executes
// named-vector searches.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/fastpoint/fastpoint/model"
)

// ErrCollectionNotFound is returned by GetCollection for unknown
// collections. The session treats it as a cue to auto-create the
// collection during ingestion.
var ErrCollectionNotFound = errors.New("collection not found")

// UpsertOptions tunes a bulk upsert.
type UpsertOptions struct {
	// BatchSize is the number of records per storage batch.
	BatchSize int
	// Parallel is the number of concurrent upload workers the store may
	// use. Values below 1 mean sequential.
	Parallel int
	// Wait blocks until the store has applied all batches.
	Wait bool
}

// Store is the vector store collaborator.
//
// SearchBatch responses are positionally aligned with requests; callers
// rely on that for fan-out/fan-in correlation.
type Store interface {
	GetCollection(ctx context.Context, name string) (model.CollectionSchema, error)
	CreateCollection(ctx context.Context, name string, vectors map[string]model.VectorParams, sparseVectors map[string]model.SparseVectorParams) error
	Upsert(ctx context.Context, collection string, records iter.Seq2[model.Record, error], opts UpsertOptions) error
	Search(ctx context.Context, collection string, req model.SearchRequest) ([]model.ScoredPoint, error)
	SearchBatch(ctx context.Context, collection string, reqs []model.SearchRequest) ([][]model.ScoredPoint, error)
}
