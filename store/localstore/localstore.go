// Package localstore is a reference, in-process implementation of the
// store contract: named dense and sparse vector fields, brute-force
// scoring, a roaring-bitmap payload filter index, and optional bbolt
// persistence. It exists for local/offline use and tests; production
// deployments point the session at a remote store instead.
package localstore

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"github.com/fastpoint/fastpoint/model"
	"github.com/fastpoint/fastpoint/store"
)

var (
	bucketCollections = []byte("collections")
	bucketPoints      = []byte("points")
)

// LocalStore implements store.Store in memory with optional persistence.
type LocalStore struct {
	mu          sync.RWMutex
	db          *bbolt.DB
	collections map[string]*collection
}

type collection struct {
	schema    model.CollectionSchema
	points    map[string]*storedPoint
	byLocal   map[uint32]string
	alive     *roaring.Bitmap
	filter    *filterIndex
	nextLocal uint32
}

type storedPoint struct {
	local   uint32
	payload map[string]any
	vectors map[string]model.Vector
}

// persistedPoint is the bbolt row format.
type persistedPoint struct {
	Payload map[string]any          `json:"payload,omitempty"`
	Vectors map[string]model.Vector `json:"vectors"`
}

// Open creates a LocalStore persisted at path. An empty path yields a
// purely in-memory store.
func Open(path string) (*LocalStore, error) {
	s := &LocalStore{collections: make(map[string]*collection)}
	if path == "" {
		return s, nil
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}
	s.db = db

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCollections); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketPoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading store: %w", err)
	}
	return s, nil
}

// Close releases the underlying database, if any.
func (s *LocalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// load hydrates the in-memory state from bbolt.
func (s *LocalStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections)
		pb := tx.Bucket(bucketPoints)

		return cb.ForEach(func(name, raw []byte) error {
			var schema model.CollectionSchema
			if err := json.Unmarshal(raw, &schema); err != nil {
				return fmt.Errorf("decoding schema for %q: %w", name, err)
			}
			col := newCollection(schema)
			s.collections[string(name)] = col

			points := pb.Bucket(name)
			if points == nil {
				return nil
			}
			return points.ForEach(func(id, row []byte) error {
				var pp persistedPoint
				if err := json.Unmarshal(row, &pp); err != nil {
					return fmt.Errorf("decoding point %q: %w", id, err)
				}
				col.insert(string(id), pp.Payload, pp.Vectors)
				return nil
			})
		})
	})
}

func newCollection(schema model.CollectionSchema) *collection {
	return &collection{
		schema:  schema,
		points:  make(map[string]*storedPoint),
		byLocal: make(map[uint32]string),
		alive:   roaring.New(),
		filter:  newFilterIndex(),
	}
}

// insert adds or overwrites a point in memory and keeps the filter index
// consistent.
func (c *collection) insert(id string, payload map[string]any, vectors map[string]model.Vector) {
	if prev, ok := c.points[id]; ok {
		c.filter.remove(prev.local, prev.payload)
		prev.payload = payload
		prev.vectors = vectors
		c.filter.add(prev.local, payload)
		return
	}
	local := c.nextLocal
	c.nextLocal++
	c.points[id] = &storedPoint{local: local, payload: payload, vectors: vectors}
	c.byLocal[local] = id
	c.alive.Add(local)
	c.filter.add(local, payload)
}

// validateRecord enforces the collection schema on one record.
func (c *collection) validateRecord(rec model.Record) error {
	for field, vec := range rec.Vectors {
		if vec.IsSparse() {
			if _, ok := c.schema.SparseVectors[field]; !ok {
				return fmt.Errorf("point %q carries unknown sparse vector field %q", rec.ID, field)
			}
			if err := vec.Sparse.Validate(); err != nil {
				return fmt.Errorf("point %q field %q: %w", rec.ID, field, err)
			}
			continue
		}
		params, ok := c.schema.Vectors[field]
		if !ok {
			return fmt.Errorf("point %q carries unknown vector field %q", rec.ID, field)
		}
		if len(vec.Dense) != params.Size {
			return fmt.Errorf("point %q field %q: expected %d dimensions, got %d", rec.ID, field, params.Size, len(vec.Dense))
		}
	}
	return nil
}

// GetCollection returns the declared schema of a collection.
func (s *LocalStore) GetCollection(_ context.Context, name string) (model.CollectionSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return model.CollectionSchema{}, fmt.Errorf("%w: %q", store.ErrCollectionNotFound, name)
	}
	return col.schema.Clone(), nil
}

// CreateCollection declares a new collection with the given vector
// configuration.
func (s *LocalStore) CreateCollection(_ context.Context, name string, vectors map[string]model.VectorParams, sparseVectors map[string]model.SparseVectorParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection %q already exists", name)
	}
	schema := model.CollectionSchema{Vectors: vectors, SparseVectors: sparseVectors}
	s.collections[name] = newCollection(schema.Clone())

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		raw, err := json.Marshal(schema)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketCollections).Put([]byte(name), raw); err != nil {
			return err
		}
		_, err = tx.Bucket(bucketPoints).CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// Upsert drains the record stream into the collection in batches. The
// first record or stream error aborts the upsert; records already applied
// stay applied (the store offers no transactional batch semantics, same as
// a remote store applying batches independently).
func (s *LocalStore) Upsert(_ context.Context, collectionName string, records iter.Seq2[model.Record, error], opts store.UpsertOptions) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	batch := make([]model.Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.applyBatch(collectionName, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for rec, err := range records {
		if err != nil {
			return err
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *LocalStore) applyBatch(collectionName string, batch []model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collectionName]
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrCollectionNotFound, collectionName)
	}
	for _, rec := range batch {
		if err := col.validateRecord(rec); err != nil {
			return err
		}
	}
	for _, rec := range batch {
		col.insert(rec.ID, rec.Payload, rec.Vectors)
	}

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		points, err := tx.Bucket(bucketPoints).CreateBucketIfNotExists([]byte(collectionName))
		if err != nil {
			return err
		}
		for _, rec := range batch {
			row, err := json.Marshal(persistedPoint{Payload: rec.Payload, Vectors: rec.Vectors})
			if err != nil {
				return err
			}
			if err := points.Put([]byte(rec.ID), row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search executes one named-vector search with brute-force scoring.
func (s *LocalStore) Search(_ context.Context, collectionName string, req model.SearchRequest) ([]model.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collectionName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrCollectionNotFound, collectionName)
	}

	var score func(p *storedPoint) (float32, bool)
	switch {
	case req.Sparse != nil:
		if _, ok := col.schema.SparseVectors[req.Field]; !ok {
			return nil, fmt.Errorf("collection %q has no sparse vector field %q", collectionName, req.Field)
		}
		query := *req.Sparse
		score = func(p *storedPoint) (float32, bool) {
			vec, ok := p.vectors[req.Field]
			if !ok || !vec.IsSparse() {
				return 0, false
			}
			return sparseDot(query, *vec.Sparse), true
		}
	case req.Dense != nil:
		params, ok := col.schema.Vectors[req.Field]
		if !ok {
			return nil, fmt.Errorf("collection %q has no vector field %q", collectionName, req.Field)
		}
		if len(req.Dense) != params.Size {
			return nil, fmt.Errorf("query vector for %q has %d dimensions, expected %d", req.Field, len(req.Dense), params.Size)
		}
		kernel := denseScorer(params.Distance)
		score = func(p *storedPoint) (float32, bool) {
			vec, ok := p.vectors[req.Field]
			if !ok || vec.IsSparse() {
				return 0, false
			}
			return kernel(req.Dense, vec.Dense), true
		}
	default:
		return nil, fmt.Errorf("search request carries no query vector")
	}

	candidates := col.alive
	if filtered := col.filter.eval(req.Filter); filtered != nil {
		candidates = filtered
	}

	hits := make([]model.ScoredPoint, 0, req.Limit)
	it := candidates.Iterator()
	for it.HasNext() {
		local := it.Next()
		p := col.points[col.byLocal[local]]
		sc, ok := score(p)
		if !ok {
			continue
		}
		hit := model.ScoredPoint{ID: col.byLocal[local], Score: sc}
		if req.WithPayload {
			hit.Payload = p.payload
		}
		if req.WithVectors {
			hit.Vectors = p.vectors
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

// SearchBatch executes the requests sequentially; the response order
// matches the request order.
func (s *LocalStore) SearchBatch(ctx context.Context, collectionName string, reqs []model.SearchRequest) ([][]model.ScoredPoint, error) {
	out := make([][]model.ScoredPoint, len(reqs))
	for i, req := range reqs {
		hits, err := s.Search(ctx, collectionName, req)
		if err != nil {
			return nil, err
		}
		out[i] = hits
	}
	return out, nil
}

var _ store.Store = (*LocalStore)(nil)
