package fastpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastpoint/fastpoint/embed"
	"github.com/fastpoint/fastpoint/fusion"
	"github.com/fastpoint/fastpoint/model"
	"github.com/fastpoint/fastpoint/store"
)

// DefaultDenseModel is selected when dense text embedding is required and
// the caller never chose a model.
const DefaultDenseModel = "BAAI/bge-small-en"

// DefaultQueryLimit is the result count used when QueryOptions leaves
// Limit unset.
const DefaultQueryLimit = 10

// Session binds a vector store to a set of embedding models. It owns model
// selection (at most one active model per slot: dense text, image, sparse
// text), derives the named vector fields those selections imply, and drives
// ingestion and hybrid retrieval through them.
//
// A Session is safe for concurrent use. Provider instances are memoized in
// the registry and shared across sessions.
type Session struct {
	store    store.Store
	registry *embed.Registry
	logger   *Logger
	metrics  MetricsCollector
	fusionK  int
	idGen    func() string
	onDisk   bool

	mu          sync.RWMutex
	denseModel  string
	imageModel  string
	sparseModel string
	text        embed.TextEmbedder
	image       embed.ImageEmbedder
	sparse      embed.SparseEmbedder
}

// New creates a Session over the given store. Without options the session
// embeds through the deterministic local hashing backend, logs nothing, and
// collects no metrics.
func New(st store.Store, opts ...Option) *Session {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
		fusionK: fusion.DefaultK,
		idGen:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = embed.NewRegistry(embed.NewHashBackend())
	}
	if o.fusionK <= 0 {
		o.fusionK = fusion.DefaultK
	}
	return &Session{
		store:    st,
		registry: o.registry,
		logger:   o.logger,
		metrics:  o.metrics,
		fusionK:  o.fusionK,
		idGen:    o.idGen,
		onDisk:   o.onDisk,
	}
}

// SetModel selects the dense text model. The provider is resolved eagerly
// so unsupported names fail here rather than mid-ingestion.
func (s *Session) SetModel(ctx context.Context, name string, opts ...embed.Option) error {
	provider, err := s.registry.ResolveText(ctx, name, opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.denseModel = name
	s.text = provider
	s.mu.Unlock()
	s.logger.WithModel(embed.SlotText.String(), name).DebugContext(ctx, "model selected")
	return nil
}

// SetImageModel selects the dense image model.
func (s *Session) SetImageModel(ctx context.Context, name string, opts ...embed.Option) error {
	provider, err := s.registry.ResolveImage(ctx, name, opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.imageModel = name
	s.image = provider
	s.mu.Unlock()
	s.logger.WithModel(embed.SlotImage.String(), name).DebugContext(ctx, "model selected")
	return nil
}

// SetSparseModel selects the sparse text model. An empty name clears the
// slot and disables hybrid search.
func (s *Session) SetSparseModel(ctx context.Context, name string, opts ...embed.Option) error {
	if name == "" {
		s.mu.Lock()
		s.sparseModel = ""
		s.sparse = nil
		s.mu.Unlock()
		return nil
	}
	provider, err := s.registry.ResolveSparse(ctx, name, opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sparseModel = name
	s.sparse = provider
	s.mu.Unlock()
	s.logger.WithModel(embed.SlotSparse.String(), name).DebugContext(ctx, "model selected")
	return nil
}

// ensureDenseModel promotes the default dense model when none was chosen.
func (s *Session) ensureDenseModel(ctx context.Context) error {
	s.mu.RLock()
	set := s.denseModel != ""
	s.mu.RUnlock()
	if set {
		return nil
	}
	return s.SetModel(ctx, DefaultDenseModel)
}

// AddOptions carries the inputs of one ingestion call. Documents, Images,
// Metadata and IDs align positionally; the record count is the shortest of
// the explicitly supplied IDs, Documents and Images. Metadata fills in but
// never bounds.
type AddOptions struct {
	// Documents are the texts to embed and ingest.
	Documents []string
	// Images are paths of images to embed and ingest. Requires an image
	// model.
	Images []string
	// Metadata is merged into each record's payload.
	Metadata []map[string]any
	// IDs overrides generated record ids.
	IDs []string

	// BatchSize is the embedding and upsert batch size. Zero selects the
	// store default.
	BatchSize int
	// Parallel bounds embedding and upload parallelism. Zero means
	// sequential.
	Parallel int
}

// Add embeds the given documents and images with the active models and
// upserts the resulting records. A missing collection is created from the
// vector configuration the active models imply; an existing collection is
// validated against it first. When no dense model was selected and
// documents are present, DefaultDenseModel is used.
//
// The returned ids, one per record in input order, identify the upserted
// points whether supplied or generated.
func (s *Session) Add(ctx context.Context, collection string, opts AddOptions) (ids []string, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordAdd(len(ids), time.Since(start), err)
		s.logger.LogAdd(ctx, collection, len(ids), err)
	}()

	if opts.Documents == nil && opts.Images == nil {
		return nil, ErrNoDocumentsOrImages
	}
	if opts.Documents != nil {
		if err = s.ensureDenseModel(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	text, sparse, image := s.text, s.sparse, s.image
	src := &recordSources{
		ids:         opts.IDs,
		documents:   opts.Documents,
		images:      opts.Images,
		metadata:    opts.Metadata,
		denseField:  s.vectorFieldNameLocked(),
		imageField:  s.imageVectorFieldNameLocked(),
		sparseField: s.sparseVectorFieldNameLocked(),
	}
	s.mu.RUnlock()

	if opts.Images != nil && image == nil {
		return nil, ErrImageModelNotSet
	}

	if opts.Documents != nil {
		src.dense = text.EmbedPassages(ctx, embed.SliceSeq(opts.Documents), opts.BatchSize, opts.Parallel)
		if sparse != nil {
			src.sparse = sparse.Embed(ctx, embed.SliceSeq(opts.Documents), opts.BatchSize, opts.Parallel)
		}
	}
	if opts.Images != nil {
		src.image = image.Embed(ctx, embed.SliceSeq(opts.Images), opts.BatchSize, opts.Parallel)
	}

	if err = s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	ids = s.resolveIDs(src, src.bound())
	err = s.store.Upsert(ctx, collection, s.records(src, ids), store.UpsertOptions{
		BatchSize: opts.BatchSize,
		Parallel:  opts.Parallel,
		Wait:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting into %q: %w", collection, err)
	}
	return ids, nil
}

// ensureCollection validates an existing collection against the active
// bindings, or creates it from them when it does not exist yet.
func (s *Session) ensureCollection(ctx context.Context, name string) error {
	schema, err := s.store.GetCollection(ctx, name)
	switch {
	case err == nil:
		return s.validateCollection(name, schema)
	case errors.Is(err, store.ErrCollectionNotFound):
		vectors, perr := s.VectorParams()
		if perr != nil {
			return perr
		}
		sparseVectors := s.SparseVectorParams()
		if cerr := s.store.CreateCollection(ctx, name, vectors, sparseVectors); cerr != nil {
			return fmt.Errorf("creating collection %q: %w", name, cerr)
		}
		s.logger.LogCollectionCreated(ctx, name, len(vectors), len(sparseVectors))
		return nil
	default:
		return fmt.Errorf("inspecting collection %q: %w", name, err)
	}
}

// Query is one retrieval input: either a text or an image path, optionally
// pinned to a specific named vector field. An explicit field is always
// authoritative over the field the active model would imply.
type Query struct {
	field string
	text  string
	image string
	kind  queryKind
}

type queryKind int

const (
	queryNone queryKind = iota
	queryText
	queryImage
)

// Text queries by text against the active dense (and, when set, sparse)
// model's fields.
func Text(q string) Query {
	return Query{text: q, kind: queryText}
}

// TextIn queries by text against an explicitly named dense vector field.
func TextIn(field, q string) Query {
	return Query{field: field, text: q, kind: queryText}
}

// Image queries by image path against the active image model's field.
func Image(path string) Query {
	return Query{image: path, kind: queryImage}
}

// ImageIn queries by image path against an explicitly named vector field.
func ImageIn(field, path string) Query {
	return Query{field: field, image: path, kind: queryImage}
}

// QueryOptions tunes retrieval.
type QueryOptions struct {
	// Limit caps the result count. Zero selects DefaultQueryLimit.
	Limit int
	// Filter restricts hits by payload.
	Filter *model.Filter
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultQueryLimit
	}
	return o.Limit
}

// queryPlan is one query's resolved execution shape: the embedded search
// requests plus whether a dense/sparse pair needs fusing.
type queryPlan struct {
	requests []model.SearchRequest
	hybrid   bool
}

// Query runs a single retrieval. Text queries search the dense field and,
// when a sparse model is active, additionally the sparse field in the same
// batched call, with the two rankings fused by reciprocal rank. Image
// queries search the image field. When no dense model was selected,
// DefaultDenseModel is used for text queries.
func (s *Session) Query(ctx context.Context, collection string, q Query, opts QueryOptions) (results []model.QueryResult, err error) {
	start := time.Now()
	hybrid := false
	defer func() {
		s.metrics.RecordQuery(hybrid, time.Since(start), err)
		s.logger.LogQuery(ctx, collection, hybrid, len(results), err)
	}()

	plan, err := s.planQuery(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	hybrid = plan.hybrid

	if !plan.hybrid {
		hits, serr := s.store.Search(ctx, collection, plan.requests[0])
		if serr != nil {
			return nil, serr
		}
		return s.scoredPointsToResults(hits), nil
	}

	lists, err := s.store.SearchBatch(ctx, collection, plan.requests)
	if err != nil {
		return nil, err
	}
	fused := fusion.ReciprocalRankFusion(lists, opts.limit(), s.fusionK)
	s.metrics.RecordFusion(len(lists), len(fused))
	return s.scoredPointsToResults(fused), nil
}

// QueryBatch runs many retrievals against one collection. All queries of a
// modality are embedded in one batched provider call and dispatched in one
// batched search call; hybrid text queries contribute a dense and a sparse
// request each, partitioned back by position and fused pairwise. Result
// order matches query order.
func (s *Session) QueryBatch(ctx context.Context, collection string, queries []Query, opts QueryOptions) (results [][]model.QueryResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordQueryBatch(len(queries), time.Since(start), err)
		s.logger.LogQueryBatch(ctx, collection, len(queries), err)
	}()

	if len(queries) == 0 {
		return nil, nil
	}

	var textIdx, imageIdx []int
	for i, q := range queries {
		switch q.kind {
		case queryText:
			textIdx = append(textIdx, i)
		case queryImage:
			imageIdx = append(imageIdx, i)
		default:
			return nil, fmt.Errorf("query %d: %w", i, ErrAmbiguousQuery)
		}
	}

	results = make([][]model.QueryResult, len(queries))

	if len(textIdx) > 0 {
		if err = s.queryBatchText(ctx, collection, queries, textIdx, opts, results); err != nil {
			return nil, err
		}
	}
	if len(imageIdx) > 0 {
		if err = s.queryBatchImage(ctx, collection, queries, imageIdx, opts, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// planQuery validates a single query against the active models and embeds
// it into ready-to-dispatch search requests.
func (s *Session) planQuery(ctx context.Context, q Query, opts QueryOptions) (queryPlan, error) {
	switch q.kind {
	case queryText:
		return s.planTextQuery(ctx, q, opts)
	case queryImage:
		return s.planImageQuery(ctx, q, opts)
	default:
		return queryPlan{}, ErrAmbiguousQuery
	}
}

func (s *Session) planTextQuery(ctx context.Context, q Query, opts QueryOptions) (queryPlan, error) {
	if err := s.checkTextModels(ctx); err != nil {
		return queryPlan{}, err
	}

	s.mu.RLock()
	text, sparse := s.text, s.sparse
	denseField := s.vectorFieldNameLocked()
	sparseField := s.sparseVectorFieldNameLocked()
	s.mu.RUnlock()

	if q.field != "" {
		denseField = q.field
	}

	dense, err := text.EmbedQuery(ctx, q.text)
	if err != nil {
		return queryPlan{}, err
	}
	plan := queryPlan{requests: []model.SearchRequest{{
		Field:       denseField,
		Dense:       dense,
		Filter:      opts.Filter,
		Limit:       opts.limit(),
		WithPayload: true,
		WithVectors: true,
	}}}

	if sparse != nil {
		sv, err := sparse.EmbedQuery(ctx, q.text)
		if err != nil {
			return queryPlan{}, err
		}
		plan.requests = append(plan.requests, model.SearchRequest{
			Field:       sparseField,
			Sparse:      &sv,
			Filter:      opts.Filter,
			Limit:       opts.limit(),
			WithPayload: true,
			WithVectors: true,
		})
		plan.hybrid = true
	}
	return plan, nil
}

func (s *Session) planImageQuery(ctx context.Context, q Query, opts QueryOptions) (queryPlan, error) {
	s.mu.RLock()
	image := s.image
	field := s.imageVectorFieldNameLocked()
	s.mu.RUnlock()

	if image == nil {
		return queryPlan{}, ErrImageModelNotSet
	}
	if q.field != "" {
		field = q.field
	}

	vec, err := image.EmbedQuery(ctx, q.image)
	if err != nil {
		return queryPlan{}, err
	}
	return queryPlan{requests: []model.SearchRequest{{
		Field:       field,
		Dense:       vec,
		Filter:      opts.Filter,
		Limit:       opts.limit(),
		WithPayload: true,
		WithVectors: true,
	}}}, nil
}

// checkTextModels enforces the hybrid precondition and promotes the
// default dense model for text retrieval when none was chosen.
func (s *Session) checkTextModels(ctx context.Context) error {
	s.mu.RLock()
	denseSet := s.denseModel != ""
	sparseSet := s.sparseModel != ""
	s.mu.RUnlock()

	if sparseSet && !denseSet {
		return ErrSparseWithoutDense
	}
	if !denseSet {
		return s.ensureDenseModel(ctx)
	}
	return nil
}

// queryBatchText embeds all text queries in one batched call per active
// model, dispatches dense requests followed by sparse requests in a single
// SearchBatch, and scatters the (fused, when hybrid) lists back to the
// queries' original positions.
func (s *Session) queryBatchText(ctx context.Context, collection string, queries []Query, idx []int, opts QueryOptions, out [][]model.QueryResult) error {
	if err := s.checkTextModels(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	text, sparse := s.text, s.sparse
	denseField := s.vectorFieldNameLocked()
	sparseField := s.sparseVectorFieldNameLocked()
	s.mu.RUnlock()

	texts := make([]string, len(idx))
	for i, qi := range idx {
		texts[i] = queries[qi].text
	}

	denseVecs, err := text.EmbedQueries(ctx, texts)
	if err != nil {
		return err
	}

	requests := make([]model.SearchRequest, 0, len(idx))
	for i, qi := range idx {
		field := denseField
		if queries[qi].field != "" {
			field = queries[qi].field
		}
		requests = append(requests, model.SearchRequest{
			Field:       field,
			Dense:       denseVecs[i],
			Filter:      opts.Filter,
			Limit:       opts.limit(),
			WithPayload: true,
			WithVectors: true,
		})
	}

	hybrid := sparse != nil
	if hybrid {
		sparseVecs, err := sparse.EmbedQueries(ctx, texts)
		if err != nil {
			return err
		}
		for i := range idx {
			sv := sparseVecs[i]
			requests = append(requests, model.SearchRequest{
				Field:       sparseField,
				Sparse:      &sv,
				Filter:      opts.Filter,
				Limit:       opts.limit(),
				WithPayload: true,
				WithVectors: true,
			})
		}
	}

	lists, err := s.store.SearchBatch(ctx, collection, requests)
	if err != nil {
		return err
	}

	n := len(idx)
	for i, qi := range idx {
		if hybrid {
			fused := fusion.ReciprocalRankFusion([][]model.ScoredPoint{lists[i], lists[n+i]}, opts.limit(), s.fusionK)
			s.metrics.RecordFusion(2, len(fused))
			out[qi] = s.scoredPointsToResults(fused)
		} else {
			out[qi] = s.scoredPointsToResults(lists[i])
		}
	}
	return nil
}

// queryBatchImage embeds all image queries in one batched call and
// dispatches them in a single SearchBatch.
func (s *Session) queryBatchImage(ctx context.Context, collection string, queries []Query, idx []int, opts QueryOptions, out [][]model.QueryResult) error {
	s.mu.RLock()
	image := s.image
	imageField := s.imageVectorFieldNameLocked()
	s.mu.RUnlock()

	if image == nil {
		return ErrImageModelNotSet
	}

	paths := make([]string, len(idx))
	for i, qi := range idx {
		paths[i] = queries[qi].image
	}

	vecs, err := image.EmbedQueries(ctx, paths)
	if err != nil {
		return err
	}

	requests := make([]model.SearchRequest, len(idx))
	for i, qi := range idx {
		field := imageField
		if queries[qi].field != "" {
			field = queries[qi].field
		}
		requests[i] = model.SearchRequest{
			Field:       field,
			Dense:       vecs[i],
			Filter:      opts.Filter,
			Limit:       opts.limit(),
			WithPayload: true,
			WithVectors: true,
		}
	}

	lists, err := s.store.SearchBatch(ctx, collection, requests)
	if err != nil {
		return err
	}
	for i, qi := range idx {
		out[qi] = s.scoredPointsToResults(lists[i])
	}
	return nil
}

// scoredPointsToResults maps store hits to the uniform result type,
// echoing payload text/path and per-modality vectors where present.
func (s *Session) scoredPointsToResults(hits []model.ScoredPoint) []model.QueryResult {
	s.mu.RLock()
	denseField := s.vectorFieldNameLocked()
	imageField := s.imageVectorFieldNameLocked()
	sparseField := s.sparseVectorFieldNameLocked()
	s.mu.RUnlock()

	results := make([]model.QueryResult, len(hits))
	for i, hit := range hits {
		r := model.QueryResult{
			ID:       hit.ID,
			Score:    hit.Score,
			Metadata: hit.Payload,
		}
		if doc, ok := hit.Payload[payloadDocumentKey].(string); ok {
			r.Document = doc
		}
		if path, ok := hit.Payload[payloadImagePathKey].(string); ok {
			r.ImagePath = path
		}
		if v, ok := hit.Vectors[denseField]; ok && !v.IsSparse() {
			r.Embedding = v.Dense
		}
		if v, ok := hit.Vectors[imageField]; ok && !v.IsSparse() {
			r.ImageEmbedding = v.Dense
		}
		if v, ok := hit.Vectors[sparseField]; ok && v.IsSparse() {
			sv := *v.Sparse
			r.SparseEmbedding = &sv
		}
		results[i] = r
	}
	return results
}
