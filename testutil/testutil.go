// Package testutil provides testing utilities for fastpoint.
//
// This package is intended for use in tests only. It provides a fake
// embedding backend with construction counters, a store wrapper that
// records calls, and a seeded random vector generator.
package testutil

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/fastpoint/fastpoint/embed"
	"github.com/fastpoint/fastpoint/model"
	"github.com/fastpoint/fastpoint/store"
)

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates num random vectors of the given width with
// values in range [0, 1).
func (r *RNG) UniformVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}
	return vectors
}

// FakeBackend is an embed.Backend for tests. Every provider it constructs
// is deterministic, and construction counts are observable so tests can
// assert registry memoization.
type FakeBackend struct {
	// Text, Image and Sparse list the supported models per slot. Leave a
	// slot nil to make every resolve for it fail.
	Text   []embed.ModelInfo
	Image  []embed.ModelInfo
	Sparse []embed.ModelInfo

	// FailText makes construction of the named text model fail.
	FailText map[string]error

	// TruncateText, when positive, makes text providers stop their lazy
	// output after that many vectors regardless of input length.
	TruncateText int

	TextConstructions   atomic.Int64
	ImageConstructions  atomic.Int64
	SparseConstructions atomic.Int64
}

var _ embed.Backend = (*FakeBackend)(nil)

// NewFakeBackend builds a backend with one small model per slot:
// "fake/dense" (4-wide cosine), "fake/image" (4-wide cosine),
// "fake/sparse".
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Text:   []embed.ModelInfo{{Name: "fake/dense", Dim: 4, Distance: model.DistanceCosine}},
		Image:  []embed.ModelInfo{{Name: "fake/image", Dim: 4, Distance: model.DistanceCosine}},
		Sparse: []embed.ModelInfo{{Name: "fake/sparse"}},
	}
}

func (b *FakeBackend) TextModels() []embed.ModelInfo   { return b.Text }
func (b *FakeBackend) ImageModels() []embed.ModelInfo  { return b.Image }
func (b *FakeBackend) SparseModels() []embed.ModelInfo { return b.Sparse }

func (b *FakeBackend) NewTextEmbedder(name string, _ embed.Options) (embed.TextEmbedder, error) {
	if err, ok := b.FailText[name]; ok {
		return nil, err
	}
	info, err := findModel(b.Text, name)
	if err != nil {
		return nil, err
	}
	b.TextConstructions.Add(1)
	return &fakeDenseEmbedder{dim: info.Dim, salt: name, truncate: b.TruncateText}, nil
}

func (b *FakeBackend) NewImageEmbedder(name string, _ embed.Options) (embed.ImageEmbedder, error) {
	info, err := findModel(b.Image, name)
	if err != nil {
		return nil, err
	}
	b.ImageConstructions.Add(1)
	return &fakeDenseEmbedder{dim: info.Dim, salt: name}, nil
}

func (b *FakeBackend) NewSparseEmbedder(name string, _ embed.Options) (embed.SparseEmbedder, error) {
	if _, err := findModel(b.Sparse, name); err != nil {
		return nil, err
	}
	b.SparseConstructions.Add(1)
	return &fakeSparseEmbedder{}, nil
}

func findModel(table []embed.ModelInfo, name string) (embed.ModelInfo, error) {
	for _, m := range table {
		if m.Name == name {
			return m, nil
		}
	}
	return embed.ModelInfo{}, fmt.Errorf("%w: %q", embed.ErrUnsupportedModel, name)
}

// fakeDenseEmbedder maps each input to a vector whose components are
// derived from the input bytes, so distinct inputs get distinct vectors
// and repeated inputs get identical ones.
type fakeDenseEmbedder struct {
	dim      int
	salt     string
	truncate int
}

func (e *fakeDenseEmbedder) embedOne(s string) []float32 {
	vec := make([]float32, e.dim)
	h := uint32(2166136261)
	for _, c := range []byte(e.salt + s) {
		h = (h ^ uint32(c)) * 16777619
		vec[h%uint32(e.dim)] += float32(h%997) / 997
	}
	return vec
}

func (e *fakeDenseEmbedder) Embed(ctx context.Context, items iter.Seq[string], _, _ int) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		emitted := 0
		for item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if e.truncate > 0 && emitted >= e.truncate {
				return
			}
			if !yield(e.embedOne(item), nil) {
				return
			}
			emitted++
		}
	}
}

func (e *fakeDenseEmbedder) EmbedPassages(ctx context.Context, items iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error] {
	return e.Embed(ctx, items, batchSize, parallel)
}

func (e *fakeDenseEmbedder) EmbedQuery(_ context.Context, item string) ([]float32, error) {
	return e.embedOne(item), nil
}

func (e *fakeDenseEmbedder) EmbedQueries(_ context.Context, items []string) ([][]float32, error) {
	out := make([][]float32, len(items))
	for i, item := range items {
		out[i] = e.embedOne(item)
	}
	return out, nil
}

type fakeSparseEmbedder struct{}

func (e *fakeSparseEmbedder) embedOne(s string) model.SparseVector {
	sv := model.SparseVector{}
	seen := map[uint32]int{}
	for _, c := range []byte(s) {
		idx := uint32(c)
		if pos, ok := seen[idx]; ok {
			sv.Values[pos]++
			continue
		}
		seen[idx] = len(sv.Indices)
		sv.Indices = append(sv.Indices, idx)
		sv.Values = append(sv.Values, 1)
	}
	return sv
}

func (e *fakeSparseEmbedder) Embed(ctx context.Context, items iter.Seq[string], _, _ int) iter.Seq2[model.SparseVector, error] {
	return func(yield func(model.SparseVector, error) bool) {
		for item := range items {
			if err := ctx.Err(); err != nil {
				yield(model.SparseVector{}, err)
				return
			}
			if !yield(e.embedOne(item), nil) {
				return
			}
		}
	}
}

func (e *fakeSparseEmbedder) EmbedQuery(_ context.Context, item string) (model.SparseVector, error) {
	return e.embedOne(item), nil
}

func (e *fakeSparseEmbedder) EmbedQueries(_ context.Context, items []string) ([]model.SparseVector, error) {
	out := make([]model.SparseVector, len(items))
	for i, item := range items {
		out[i] = e.embedOne(item)
	}
	return out, nil
}

// RecordingStore wraps a store.Store and records the calls made through
// it, so tests can assert batching and dispatch shape without inspecting
// store internals.
type RecordingStore struct {
	Inner store.Store

	mu            sync.Mutex
	upserted      []model.Record
	searchBatches [][]model.SearchRequest
	searches      []model.SearchRequest
}

var _ store.Store = (*RecordingStore)(nil)

// NewRecordingStore wraps inner.
func NewRecordingStore(inner store.Store) *RecordingStore {
	return &RecordingStore{Inner: inner}
}

func (r *RecordingStore) GetCollection(ctx context.Context, name string) (model.CollectionSchema, error) {
	return r.Inner.GetCollection(ctx, name)
}

func (r *RecordingStore) CreateCollection(ctx context.Context, name string, vectors map[string]model.VectorParams, sparseVectors map[string]model.SparseVectorParams) error {
	return r.Inner.CreateCollection(ctx, name, vectors, sparseVectors)
}

func (r *RecordingStore) Upsert(ctx context.Context, collection string, records iter.Seq2[model.Record, error], opts store.UpsertOptions) error {
	recording := func(yield func(model.Record, error) bool) {
		for rec, err := range records {
			if err == nil {
				r.mu.Lock()
				r.upserted = append(r.upserted, rec)
				r.mu.Unlock()
			}
			if !yield(rec, err) {
				return
			}
		}
	}
	return r.Inner.Upsert(ctx, collection, recording, opts)
}

func (r *RecordingStore) Search(ctx context.Context, collection string, req model.SearchRequest) ([]model.ScoredPoint, error) {
	r.mu.Lock()
	r.searches = append(r.searches, req)
	r.mu.Unlock()
	return r.Inner.Search(ctx, collection, req)
}

func (r *RecordingStore) SearchBatch(ctx context.Context, collection string, reqs []model.SearchRequest) ([][]model.ScoredPoint, error) {
	r.mu.Lock()
	r.searchBatches = append(r.searchBatches, reqs)
	r.mu.Unlock()
	return r.Inner.SearchBatch(ctx, collection, reqs)
}

// Upserted returns the records that passed through Upsert, in order.
func (r *RecordingStore) Upserted() []model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Record, len(r.upserted))
	copy(out, r.upserted)
	return out
}

// SearchBatches returns the request slices passed to SearchBatch, in order.
func (r *RecordingStore) SearchBatches() [][]model.SearchRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]model.SearchRequest, len(r.searchBatches))
	copy(out, r.searchBatches)
	return out
}

// Searches returns the requests passed to Search, in order.
func (r *RecordingStore) Searches() []model.SearchRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SearchRequest, len(r.searches))
	copy(out, r.searches)
	return out
}
