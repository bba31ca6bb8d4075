package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastpoint/fastpoint/artifact"
)

// Registry resolves logical model names to memoized provider instances and
// to their output contracts. It interrogates the backend once at
// construction to populate the per-slot supported-model tables; if no
// backend is available the tables stay empty and every resolve fails with
// ErrBackendUnavailable.
//
// The provider caches are process-lifetime: construction happens at most
// once per (slot, model) and redundant concurrent fills are prevented by a
// per-registry lock. Providers are stateless compute objects and safe to
// share across sessions.
type Registry struct {
	backend Backend
	cache   *artifact.Cache

	textParams   map[string]ModelInfo
	imageParams  map[string]ModelInfo
	sparseModels map[string]ModelInfo

	mu     sync.Mutex
	text   map[string]TextEmbedder
	image  map[string]ImageEmbedder
	sparse map[string]SparseEmbedder
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithArtifactCache provisions model artifacts through the given cache:
// when a provider is constructed without an explicit cache directory, the
// registry fetches the model archive and passes the unpacked directory to
// the backend.
func WithArtifactCache(cache *artifact.Cache) RegistryOption {
	return func(r *Registry) { r.cache = cache }
}

// NewRegistry builds a registry over the given backend. A nil backend
// yields a registry whose resolves fail with ErrBackendUnavailable.
func NewRegistry(backend Backend, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend:      backend,
		textParams:   make(map[string]ModelInfo),
		imageParams:  make(map[string]ModelInfo),
		sparseModels: make(map[string]ModelInfo),
		text:         make(map[string]TextEmbedder),
		image:        make(map[string]ImageEmbedder),
		sparse:       make(map[string]SparseEmbedder),
	}
	for _, opt := range opts {
		opt(r)
	}
	if backend != nil {
		for _, m := range backend.TextModels() {
			r.textParams[m.Name] = m
		}
		for _, m := range backend.ImageModels() {
			r.imageParams[m.Name] = m
		}
		for _, m := range backend.SparseModels() {
			r.sparseModels[m.Name] = m
		}
	}
	return r
}

// Available reports whether a backend is configured.
func (r *Registry) Available() bool {
	return r.backend != nil
}

// TextParams returns the output contract (width, distance) of a dense text
// model.
func (r *Registry) TextParams(name string) (ModelInfo, error) {
	return r.params(SlotText, r.textParams, name)
}

// ImageParams returns the output contract of a dense image model.
func (r *Registry) ImageParams(name string) (ModelInfo, error) {
	return r.params(SlotImage, r.imageParams, name)
}

// SparseParams confirms a sparse model is supported. Sparse models track
// existence only; the returned info carries no width or distance.
func (r *Registry) SparseParams(name string) (ModelInfo, error) {
	return r.params(SlotSparse, r.sparseModels, name)
}

func (r *Registry) params(slot Slot, table map[string]ModelInfo, name string) (ModelInfo, error) {
	if r.backend == nil {
		return ModelInfo{}, fmt.Errorf("resolving %s model %q: %w", slot, name, ErrBackendUnavailable)
	}
	info, ok := table[name]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: no %s model %q", ErrUnsupportedModel, slot, name)
	}
	return info, nil
}

// ResolveText returns the memoized text provider for name, constructing it
// on first use.
func (r *Registry) ResolveText(ctx context.Context, name string, opts ...Option) (TextEmbedder, error) {
	if _, err := r.TextParams(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.text[name]; ok {
		return inst, nil
	}
	o, err := r.buildOptions(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	inst, err := r.backend.NewTextEmbedder(name, o)
	if err != nil {
		return nil, err
	}
	r.text[name] = inst
	return inst, nil
}

// ResolveImage returns the memoized image provider for name.
func (r *Registry) ResolveImage(ctx context.Context, name string, opts ...Option) (ImageEmbedder, error) {
	if _, err := r.ImageParams(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.image[name]; ok {
		return inst, nil
	}
	o, err := r.buildOptions(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	inst, err := r.backend.NewImageEmbedder(name, o)
	if err != nil {
		return nil, err
	}
	r.image[name] = inst
	return inst, nil
}

// ResolveSparse returns the memoized sparse provider for name.
func (r *Registry) ResolveSparse(ctx context.Context, name string, opts ...Option) (SparseEmbedder, error) {
	if _, err := r.SparseParams(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.sparse[name]; ok {
		return inst, nil
	}
	o, err := r.buildOptions(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	inst, err := r.backend.NewSparseEmbedder(name, o)
	if err != nil {
		return nil, err
	}
	r.sparse[name] = inst
	return inst, nil
}

// buildOptions applies the caller's options and, when no cache directory
// was given, provisions model artifacts through the artifact cache.
func (r *Registry) buildOptions(ctx context.Context, name string, opts []Option) (Options, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.CacheDir == "" && r.cache != nil {
		dir, err := r.cache.Fetch(ctx, name)
		if err != nil {
			return Options{}, fmt.Errorf("fetching artifacts for %q: %w", name, err)
		}
		o.CacheDir = dir
	}
	return o, nil
}
