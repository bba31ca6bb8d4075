package embed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fastpoint/fastpoint/model"
)

// RemoteConfig configures an OpenAI-compatible embedding backend.
type RemoteConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is sent as a bearer token.
	APIKey string
	// Models overrides the supported dense text model table. When empty a
	// default table of common hosted models is used.
	Models []ModelInfo
	// RequestsPerSecond rate-limits outbound embedding calls. Zero
	// disables limiting.
	RequestsPerSecond float64
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// RemoteBackend serves dense text models from an OpenAI-compatible
// embeddings API. Image and sparse slots are not served remotely.
type RemoteBackend struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemoteBackend builds a backend over an OpenAI-compatible API.
func NewRemoteBackend(cfg RemoteConfig) *RemoteBackend {
	if len(cfg.Models) == 0 {
		cfg.Models = []ModelInfo{
			{Name: "text-embedding-3-small", Dim: 1536, Distance: model.DistanceCosine},
			{Name: "text-embedding-3-large", Dim: 3072, Distance: model.DistanceCosine},
			{Name: "text-embedding-ada-002", Dim: 1536, Distance: model.DistanceCosine},
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &RemoteBackend{cfg: cfg, client: client, limiter: limiter}
}

// TextModels returns the configured dense text model table.
func (b *RemoteBackend) TextModels() []ModelInfo {
	return b.cfg.Models
}

// ImageModels returns nil: the remote backend serves text only.
func (b *RemoteBackend) ImageModels() []ModelInfo { return nil }

// SparseModels returns nil: the remote backend serves text only.
func (b *RemoteBackend) SparseModels() []ModelInfo { return nil }

// NewTextEmbedder constructs a remote dense text embedder.
func (b *RemoteBackend) NewTextEmbedder(name string, _ Options) (TextEmbedder, error) {
	for _, m := range b.cfg.Models {
		if m.Name == name {
			return &remoteTextEmbedder{backend: b, model: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
}

// NewImageEmbedder always fails: the remote backend serves text only.
func (b *RemoteBackend) NewImageEmbedder(name string, _ Options) (ImageEmbedder, error) {
	return nil, fmt.Errorf("%w: remote backend has no image model %q", ErrUnsupportedModel, name)
}

// NewSparseEmbedder always fails: the remote backend serves text only.
func (b *RemoteBackend) NewSparseEmbedder(name string, _ Options) (SparseEmbedder, error) {
	return nil, fmt.Errorf("%w: remote backend has no sparse model %q", ErrUnsupportedModel, name)
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// embedBatch issues one embeddings call, honoring the rate limiter.
func (b *RemoteBackend) embedBatch(ctx context.Context, modelName string, input []string) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(embeddingRequest{Input: input, Model: modelName})
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embeddings response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embeddings API error: %s", parsed.Error.Message)
	}

	out := make([][]float32, len(input))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings API returned no vector for input %d", i)
		}
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

type remoteTextEmbedder struct {
	backend *RemoteBackend
	model   string
}

const (
	defaultRemoteBatch = 100
	maxRemoteParallel  = 8
)

// Embed drains the input, embeds it in parallel batches, and replays the
// vectors in input order. Parallelism is internal to the provider; the
// output sequence is strictly order-preserving.
func (e *remoteTextEmbedder) Embed(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error] {
	if batchSize <= 0 || batchSize > defaultRemoteBatch {
		batchSize = defaultRemoteBatch
	}
	if parallel <= 0 {
		parallel = 1
	}
	if parallel > maxRemoteParallel {
		parallel = maxRemoteParallel
	}

	return func(yield func([]float32, error) bool) {
		var docs []string
		for doc := range documents {
			docs = append(docs, doc)
		}

		type batch struct {
			start int
			texts []string
		}
		var batches []batch
		for i := 0; i < len(docs); i += batchSize {
			end := min(i+batchSize, len(docs))
			batches = append(batches, batch{start: i, texts: docs[i:end]})
		}

		vectors := make([][]float32, len(docs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for _, bt := range batches {
			g.Go(func() error {
				vs, err := e.backend.embedBatch(gctx, e.model, bt.texts)
				if err != nil {
					return err
				}
				copy(vectors[bt.start:], vs)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			yield(nil, err)
			return
		}
		for _, v := range vectors {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (e *remoteTextEmbedder) EmbedPassages(ctx context.Context, documents iter.Seq[string], batchSize, parallel int) iter.Seq2[[]float32, error] {
	return e.Embed(ctx, documents, batchSize, parallel)
}

func (e *remoteTextEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vs, err := e.backend.embedBatch(ctx, e.model, []string{query})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *remoteTextEmbedder) EmbedQueries(ctx context.Context, queries []string) ([][]float32, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	return e.backend.embedBatch(ctx, e.model, queries)
}
