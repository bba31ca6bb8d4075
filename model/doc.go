// Package model defines the core types exchanged between the fastpoint
// session, the embedding providers, and the vector store.
//
// # Vector Types
//
//   - Vector: one value of a named vector field, dense or sparse
//   - SparseVector: non-zero coordinates of a high-dimensional embedding
//   - Distance: metric a dense field is compared with (Cosine, Dot, Euclid)
//
// # Record Types
//
//   - Record: one upsert-ready point (id, payload, named vectors)
//   - ScoredPoint: one store search hit
//   - QueryResult: the uniform result type returned to callers
//
// # Store Configuration
//
//   - VectorParams / SparseVectorParams: declared shape of a named field
//   - CollectionSchema: the full vector configuration of a collection
//   - SearchRequest / Filter: one named-vector search with payload filtering
package model
