package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"math"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/fastpoint/fastpoint/model"
)

// HashBackend is a deterministic, dependency-free embedding backend. Dense
// vectors are token-hash projections, sparse vectors are hashed term
// frequencies, so identical inputs always produce identical embeddings and
// overlapping token sets score close to each other. It exists for offline
// use and tests; the model tables mirror common fastembed names so
// collections created against it stay schema-compatible with real
// deployments.
type HashBackend struct{}

// NewHashBackend returns the local hashing backend.
func NewHashBackend() *HashBackend {
	return &HashBackend{}
}

// TextModels lists the supported dense text models.
func (b *HashBackend) TextModels() []ModelInfo {
	return []ModelInfo{
		{Name: "BAAI/bge-small-en", Dim: 384, Distance: model.DistanceCosine},
		{Name: "BAAI/bge-base-en", Dim: 768, Distance: model.DistanceCosine},
		{Name: "sentence-transformers/all-MiniLM-L6-v2", Dim: 384, Distance: model.DistanceCosine},
	}
}

// ImageModels lists the supported dense image models.
func (b *HashBackend) ImageModels() []ModelInfo {
	return []ModelInfo{
		{Name: "Qdrant/clip-ViT-B-32-vision", Dim: 512, Distance: model.DistanceCosine},
	}
}

// SparseModels lists the supported sparse text models.
func (b *HashBackend) SparseModels() []ModelInfo {
	return []ModelInfo{
		{Name: "prithivida/Splade_PP_en_v1"},
		{Name: "Qdrant/bm42-all-minilm-l6-v2-attentions"},
	}
}

func (b *HashBackend) findModel(table []ModelInfo, name string) (ModelInfo, error) {
	for _, m := range table {
		if m.Name == name {
			return m, nil
		}
	}
	return ModelInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
}

// NewTextEmbedder constructs a hashing text embedder.
func (b *HashBackend) NewTextEmbedder(name string, _ Options) (TextEmbedder, error) {
	info, err := b.findModel(b.TextModels(), name)
	if err != nil {
		return nil, err
	}
	return &hashTextEmbedder{dim: info.Dim, seed: info.Name}, nil
}

// NewImageEmbedder constructs a hashing image embedder.
func (b *HashBackend) NewImageEmbedder(name string, _ Options) (ImageEmbedder, error) {
	info, err := b.findModel(b.ImageModels(), name)
	if err != nil {
		return nil, err
	}
	return &hashImageEmbedder{dim: info.Dim, seed: info.Name}, nil
}

// NewSparseEmbedder constructs a hashing sparse embedder.
func (b *HashBackend) NewSparseEmbedder(name string, _ Options) (SparseEmbedder, error) {
	info, err := b.findModel(b.SparseModels(), name)
	if err != nil {
		return nil, err
	}
	return &hashSparseEmbedder{seed: info.Name}, nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-rune fragments.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func hash32(seed, s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	h.Write([]byte{0})
	h.Write([]byte(s))
	return h.Sum32()
}

// hashProject folds tokens into a fixed-width, L2-normalized vector.
func hashProject(seed string, tokens []string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, tok := range tokens {
		h := hash32(seed, tok)
		idx := int(h % uint32(dim))
		sign := float32(1)
		if h&0x80000000 != 0 {
			sign = -1
		}
		vec[idx] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Zero vectors break cosine scoring; pin empty inputs to a stable
		// unit vector instead.
		vec[int(hash32(seed, ""))%dim] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

type hashTextEmbedder struct {
	dim  int
	seed string
}

func (e *hashTextEmbedder) embedOne(text string) []float32 {
	return hashProject(e.seed, tokenize(text), e.dim)
}

func (e *hashTextEmbedder) Embed(ctx context.Context, documents iter.Seq[string], _, _ int) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		for doc := range documents {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(e.embedOne(doc), nil) {
				return
			}
		}
	}
}

func (e *hashTextEmbedder) EmbedPassages(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error] {
	return e.Embed(ctx, documents, batchSize, parallel)
}

func (e *hashTextEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embedOne(query), nil
}

func (e *hashTextEmbedder) EmbedQueries(ctx context.Context, queries []string) ([][]float32, error) {
	out := make([][]float32, len(queries))
	for i, q := range queries {
		v, err := e.EmbedQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type hashImageEmbedder struct {
	dim  int
	seed string
}

// embedOne featurizes the image bytes when the path is readable and falls
// back to the path itself otherwise.
func (e *hashImageEmbedder) embedOne(image string) []float32 {
	data, err := os.ReadFile(image)
	if err != nil {
		data = []byte(image)
	}
	const chunk = 64
	tokens := make([]string, 0, len(data)/chunk+1)
	for i := 0; i < len(data); i += chunk {
		end := min(i+chunk, len(data))
		tokens = append(tokens, string(data[i:end]))
	}
	return hashProject(e.seed, tokens, e.dim)
}

func (e *hashImageEmbedder) Embed(ctx context.Context, images iter.Seq[string], _, _ int) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		for img := range images {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(e.embedOne(img), nil) {
				return
			}
		}
	}
}

func (e *hashImageEmbedder) EmbedQuery(ctx context.Context, image string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embedOne(image), nil
}

func (e *hashImageEmbedder) EmbedQueries(ctx context.Context, images []string) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, img := range images {
		v, err := e.EmbedQuery(ctx, img)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type hashSparseEmbedder struct {
	seed string
}

// embedOne maps each distinct token to a hashed coordinate weighted by
// sublinear term frequency.
func (e *hashSparseEmbedder) embedOne(text string) model.SparseVector {
	counts := make(map[uint32]int)
	for _, tok := range tokenize(text) {
		counts[hash32(e.seed, tok)]++
	}
	sv := model.SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for idx := range counts {
		sv.Indices = append(sv.Indices, idx)
	}
	// Deterministic coordinate order.
	slices.Sort(sv.Indices)
	for _, idx := range sv.Indices {
		sv.Values = append(sv.Values, float32(1+math.Log(float64(counts[idx]))))
	}
	return sv
}

func (e *hashSparseEmbedder) Embed(ctx context.Context, documents iter.Seq[string], _, _ int) iter.Seq2[model.SparseVector, error] {
	return func(yield func(model.SparseVector, error) bool) {
		for doc := range documents {
			if err := ctx.Err(); err != nil {
				yield(model.SparseVector{}, err)
				return
			}
			if !yield(e.embedOne(doc), nil) {
				return
			}
		}
	}
}

func (e *hashSparseEmbedder) EmbedQuery(ctx context.Context, query string) (model.SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return model.SparseVector{}, err
	}
	return e.embedOne(query), nil
}

func (e *hashSparseEmbedder) EmbedQueries(ctx context.Context, queries []string) ([]model.SparseVector, error) {
	out := make([]model.SparseVector, len(queries))
	for i, q := range queries {
		v, err := e.EmbedQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
