// Package embed defines the embedding-provider contracts consumed by the
// fastpoint session, the process-wide model registry, and two backends: a
// rate-limited remote backend for OpenAI-compatible APIs and a deterministic
// local hashing backend.
//
// Providers are black boxes: given an ordered input sequence they produce a
// lazy, order-preserving sequence of vectors. Batching and parallelism are
// the provider's internal concern; callers treat every call as blocking.
package embed

import (
	"context"
	"errors"
	"iter"

	"github.com/fastpoint/fastpoint/model"
)

var (
	// ErrUnsupportedModel is returned when a model name is absent from the
	// backend's supported-model table for the requested slot.
	ErrUnsupportedModel = errors.New("unsupported embedding model")

	// ErrBackendUnavailable is returned when no embedding backend is
	// configured, so no model can be resolved.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")
)

// Slot is one of the three model slots a session can populate.
type Slot int

const (
	SlotText Slot = iota
	SlotImage
	SlotSparse
)

func (s Slot) String() string {
	switch s {
	case SlotText:
		return "text"
	case SlotImage:
		return "image"
	case SlotSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// ModelInfo describes one supported model as reported by a Backend.
// Dim and Distance are meaningful for dense slots only; sparse models have
// no fixed output width.
type ModelInfo struct {
	Name     string
	Dim      int
	Distance model.Distance
}

// Options carries model construction knobs. All fields are optional.
type Options struct {
	// CacheDir is the local directory holding model artifacts.
	CacheDir string
	// Threads bounds the provider's internal compute parallelism.
	Threads int
	// Providers selects backend execution providers, when applicable.
	Providers []string
}

// Option mutates Options.
type Option func(*Options)

// WithCacheDir sets the local model artifact directory.
func WithCacheDir(dir string) Option {
	return func(o *Options) { o.CacheDir = dir }
}

// WithThreads bounds the provider's internal compute parallelism.
func WithThreads(n int) Option {
	return func(o *Options) { o.Threads = n }
}

// WithProviders selects backend execution providers.
func WithProviders(providers ...string) Option {
	return func(o *Options) { o.Providers = providers }
}

// TextEmbedder produces dense vectors for text.
type TextEmbedder interface {
	// Embed lazily embeds documents in order. batchSize and parallel are
	// hints the provider may honor internally; output order always matches
	// input order.
	Embed(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error]

	// EmbedPassages is the ingestion-optimized variant of Embed. Providers
	// without a dedicated passage path fall back to Embed.
	EmbedPassages(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error]

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedQueries embeds a batch of query strings in one call,
	// preserving order.
	EmbedQueries(ctx context.Context, queries []string) ([][]float32, error)
}

// ImageEmbedder produces dense vectors for images addressed by path.
type ImageEmbedder interface {
	Embed(ctx context.Context, images iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error]
	EmbedQuery(ctx context.Context, image string) ([]float32, error)
	EmbedQueries(ctx context.Context, images []string) ([][]float32, error)
}

// SparseEmbedder produces sparse vectors for text.
type SparseEmbedder interface {
	Embed(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[model.SparseVector, error]
	EmbedQuery(ctx context.Context, query string) (model.SparseVector, error)
	EmbedQueries(ctx context.Context, queries []string) ([]model.SparseVector, error)
}

// Backend constructs providers and reports the models it supports per slot.
// Construction is expensive; the Registry memoizes the results.
type Backend interface {
	TextModels() []ModelInfo
	ImageModels() []ModelInfo
	SparseModels() []ModelInfo

	NewTextEmbedder(name string, opts Options) (TextEmbedder, error)
	NewImageEmbedder(name string, opts Options) (ImageEmbedder, error)
	NewSparseEmbedder(name string, opts Options) (SparseEmbedder, error)
}

// SliceSeq adapts a slice to the lazy input sequence providers consume.
func SliceSeq[T any](items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}
