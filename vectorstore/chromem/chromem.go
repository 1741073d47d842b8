// Package chromem backs the vectorstore.Store interface with chromem-go,
// a pure Go embedded vector database. It is the in-process option: no
// external service, cosine similarity, collections held in memory.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// payloadKey is the reserved metadata key holding the JSON-encoded payload.
const payloadKey = "_payload"

// sampleCap bounds how many points contribute payload keys to Stats.
const sampleCap = 100

// Config configures a chromem-backed store.
type Config struct {
	// Collection is the namespace this store is scoped to. Required.
	Collection string

	// Dimension is the vector size the collection is created with. Required.
	Dimension int

	// DefaultScoreThreshold applies when a search passes no threshold.
	DefaultScoreThreshold float64
}

// Store is a vectorstore.Store over one chromem collection. Multiple
// Stores may share one *chromem.DB, one collection each.
type Store struct {
	db  *chromem.DB
	cfg Config

	mu         sync.RWMutex
	collection *chromem.Collection
	sampleKeys map[string]struct{} // payload keys seen on recent upserts
	sampleSize int
}

// New creates a store scoped to cfg.Collection on the shared db.
func New(db *chromem.DB, cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	return &Store{
		db:         db,
		cfg:        cfg,
		sampleKeys: make(map[string]struct{}),
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet.
// Idempotent; safe to call from concurrent requests.
func (s *Store) EnsureCollection(ctx context.Context) error {
	_, err := s.getOrCreate()
	return err
}

func (s *Store) getOrCreate() (*chromem.Collection, error) {
	s.mu.RLock()
	col := s.collection
	s.mu.RUnlock()
	if col != nil {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring the write lock.
	if s.collection != nil {
		return s.collection, nil
	}

	// Embeddings are always provided by the caller, so no embedding func
	// is registered with the collection.
	col, err := s.db.GetOrCreateCollection(s.cfg.Collection, nil, nil)
	if err != nil {
		return nil, core.Errorf(core.KindStore, "chromem.EnsureCollection", "get or create collection %q: %w", s.cfg.Collection, err)
	}
	s.collection = col
	return col, nil
}

// Upsert writes or overwrites one point. An empty id gets a fresh UUID.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) (string, error) {
	ids, err := s.UpsertBatch(ctx, []vectorstore.Point{{ID: id, Vector: vector, Payload: payload}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// UpsertBatch writes multiple points, returning ids in input order.
func (s *Store) UpsertBatch(ctx context.Context, points []vectorstore.Point) ([]string, error) {
	col, err := s.getOrCreate()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(points))
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != s.cfg.Dimension {
			return nil, core.Errorf(core.KindStore, "chromem.Upsert",
				"vector dimension %d does not match collection dimension %d", len(p.Vector), s.cfg.Dimension)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		doc, err := encodeDocument(p)
		if err != nil {
			return nil, core.E(core.KindStore, "chromem.Upsert", err)
		}
		ids[i] = p.ID
		docs[i] = doc
	}

	for _, doc := range docs {
		if err := col.AddDocument(ctx, doc); err != nil {
			return nil, core.Errorf(core.KindStore, "chromem.Upsert", "add document %s: %w", doc.ID, err)
		}
	}

	s.recordSample(points)
	return ids, nil
}

// Search returns similarity hits above the threshold, descending by score.
func (s *Store) Search(ctx context.Context, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	if opts.Limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "chromem.Search", "limit must be positive, got %d", opts.Limit)
	}
	if len(vector) != s.cfg.Dimension {
		return nil, core.Errorf(core.KindStore, "chromem.Search",
			"query dimension %d does not match collection dimension %d", len(vector), s.cfg.Dimension)
	}

	col, err := s.getOrCreate()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	threshold := s.cfg.DefaultScoreThreshold
	if opts.ScoreThreshold != nil {
		threshold = *opts.ScoreThreshold
	}

	// chromem has no threshold or payload-filter support, so over-fetch
	// and filter here. Filters may disqualify arbitrarily many hits, so
	// fetch the whole collection when a filter is present.
	fetch := opts.Limit
	if len(opts.Filter) > 0 {
		fetch = count
	}
	if fetch > count {
		fetch = count
	}

	raw, err := col.QueryEmbedding(ctx, vector, fetch, nil, nil)
	if err != nil {
		return nil, core.Errorf(core.KindStore, "chromem.Search", "query embedding: %w", err)
	}

	results := make([]vectorstore.SearchResult, 0, len(raw))
	for _, r := range raw {
		score := float64(r.Similarity)
		if score < threshold {
			continue
		}
		payload, err := decodePayload(r.Metadata, r.Content)
		if err != nil {
			return nil, core.Errorf(core.KindStore, "chromem.Search", "decode payload of %s: %w", r.ID, err)
		}
		if len(opts.Filter) > 0 && !opts.Filter.Matches(payload) {
			continue
		}
		results = append(results, vectorstore.SearchResult{ID: r.ID, Score: score, Payload: payload})
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}

// GetByIDs returns existing points; missing ids are silently omitted.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]vectorstore.Point, error) {
	col, err := s.getOrCreate()
	if err != nil {
		return nil, err
	}

	points := make([]vectorstore.Point, 0, len(ids))
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			continue // not found
		}
		payload, err := decodePayload(doc.Metadata, doc.Content)
		if err != nil {
			return nil, core.Errorf(core.KindStore, "chromem.GetByIDs", "decode payload of %s: %w", id, err)
		}
		points = append(points, vectorstore.Point{ID: doc.ID, Vector: doc.Embedding, Payload: payload})
	}
	return points, nil
}

// UpdatePayload overwrites the payload of an existing point. Best effort:
// a missing point or backend failure reports false.
func (s *Store) UpdatePayload(ctx context.Context, id string, payload map[string]interface{}) bool {
	col, err := s.getOrCreate()
	if err != nil {
		return false
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return false
	}

	updated, err := encodeDocument(vectorstore.Point{ID: id, Vector: doc.Embedding, Payload: payload})
	if err != nil {
		return false
	}
	return col.AddDocument(ctx, updated) == nil
}

// Delete removes one point. Best effort.
func (s *Store) Delete(ctx context.Context, id string) bool {
	return s.DeleteBatch(ctx, []string{id})
}

// DeleteBatch removes multiple points. Best effort.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) bool {
	col, err := s.getOrCreate()
	if err != nil {
		return false
	}
	return col.Delete(ctx, nil, nil, ids...) == nil
}

// Stats summarizes the collection. Payload fields come from keys observed
// on upserts through this store, capped at the sample size.
func (s *Store) Stats(ctx context.Context) (*vectorstore.CollectionStats, error) {
	col, err := s.getOrCreate()
	if err != nil {
		return nil, err
	}
	count := uint64(col.Count())

	s.mu.RLock()
	fields := make([]string, 0, len(s.sampleKeys))
	for k := range s.sampleKeys {
		fields = append(fields, k)
	}
	sampleSize := s.sampleSize
	s.mu.RUnlock()
	sort.Strings(fields)

	return &vectorstore.CollectionStats{
		Name:           s.cfg.Collection,
		VectorCount:    count,
		PointCount:     count,
		Status:         "green",
		Dimension:      s.cfg.Dimension,
		DistanceMetric: "cosine",
		PayloadFields:  fields,
		SampleSize:     sampleSize,
	}, nil
}

// Close releases resources. chromem keeps everything in memory; nothing
// to release.
func (s *Store) Close() error {
	return nil
}

func (s *Store) recordSample(points []vectorstore.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if s.sampleSize >= sampleCap {
			return
		}
		s.sampleSize++
		for k := range p.Payload {
			s.sampleKeys[k] = struct{}{}
		}
	}
}

// encodeDocument serializes a point into a chromem document. The full
// payload goes into a reserved metadata key as JSON; the raw text, when
// present, also becomes the document content for readability.
func encodeDocument(p vectorstore.Point) (chromem.Document, error) {
	encoded, err := json.Marshal(p.Payload)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshal payload: %w", err)
	}

	content, _ := p.Payload["text"].(string)
	if content == "" {
		content, _ = p.Payload["content"].(string)
	}

	return chromem.Document{
		ID:        p.ID,
		Content:   content,
		Embedding: p.Vector,
		Metadata:  map[string]string{payloadKey: string(encoded)},
	}, nil
}

func decodePayload(metadata map[string]string, content string) (map[string]interface{}, error) {
	encoded, ok := metadata[payloadKey]
	if !ok {
		// Document written without a payload envelope; surface the raw
		// content so results stay renderable.
		payload := map[string]interface{}{}
		if content != "" {
			payload["text"] = content
		}
		return payload, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}
