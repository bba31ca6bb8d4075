package model

import (
	"fmt"
	"maps"
	"slices"
)

// Distance identifies the metric a dense vector field is compared with.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
	DistanceEuclid Distance = "Euclid"
)

// SparseVector holds only the non-zero coordinates of a high-dimensional
// embedding as parallel index/value sequences.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// IsZero reports whether the sparse vector carries no coordinates.
func (v SparseVector) IsZero() bool {
	return len(v.Indices) == 0
}

// Validate checks that the index and value sequences line up.
func (v SparseVector) Validate() error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("sparse vector has %d indices but %d values", len(v.Indices), len(v.Values))
	}
	return nil
}

// Vector is one value of a named vector field. Exactly one of Dense or
// Sparse is set.
type Vector struct {
	Dense  []float32
	Sparse *SparseVector
}

// DenseVector wraps a dense embedding as a field value.
func DenseVector(v []float32) Vector {
	return Vector{Dense: v}
}

// SparseFieldVector wraps a sparse embedding as a field value.
func SparseFieldVector(v SparseVector) Vector {
	return Vector{Sparse: &v}
}

// IsSparse reports whether the value is a sparse vector.
func (v Vector) IsSparse() bool {
	return v.Sparse != nil
}

// Record is one upsert-ready point: a stable id, an arbitrary structured
// payload, and a mapping from named vector fields to their values.
type Record struct {
	ID      string
	Payload map[string]any
	Vectors map[string]Vector
}

// VectorParams declares the shape of one dense named vector field.
type VectorParams struct {
	Size     int
	Distance Distance
	OnDisk   bool
}

// SparseVectorParams declares one sparse named vector field. Sparse fields
// have no fixed width or distance metric.
type SparseVectorParams struct {
	OnDisk bool
}

// CollectionSchema is the vector configuration a collection declares.
type CollectionSchema struct {
	Vectors       map[string]VectorParams
	SparseVectors map[string]SparseVectorParams
}

// Clone returns a deep copy of the schema.
func (s CollectionSchema) Clone() CollectionSchema {
	return CollectionSchema{
		Vectors:       maps.Clone(s.Vectors),
		SparseVectors: maps.Clone(s.SparseVectors),
	}
}

// FieldMatch is a single payload equality condition.
type FieldMatch struct {
	Key   string
	Value any
}

// Filter restricts a search to points whose payload satisfies every
// condition in Must.
type Filter struct {
	Must []FieldMatch
}

// SearchRequest is one named-vector search against a collection. Exactly
// one of Dense or Sparse carries the query vector; Field names the vector
// field to search over.
type SearchRequest struct {
	Field       string
	Dense       []float32
	Sparse      *SparseVector
	Filter      *Filter
	Limit       int
	WithPayload bool
	WithVectors bool
}

// ScoredPoint is one search hit as produced by the store.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
	Vectors map[string]Vector
}

// QueryResult is the uniform result type the session maps store hits into.
// The per-modality embeddings are echoed only when the originating search
// requested vectors and the collection stores that field.
type QueryResult struct {
	ID              string
	Score           float32
	Metadata        map[string]any
	Document        string
	ImagePath       string
	Embedding       []float32
	ImageEmbedding  []float32
	SparseEmbedding *SparseVector
}

// SortScoredPointsDesc orders hits by score descending in place, preserving
// the incoming order of equal scores.
func SortScoredPointsDesc(points []ScoredPoint) {
	slices.SortStableFunc(points, func(a, b ScoredPoint) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}
