// Package qdrant backs the vectorstore.Store interface with a remote
// Qdrant service. This is the production option: payload filters and score
// thresholds are evaluated server-side.
package qdrant

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// Config configures a Qdrant-backed store.
type Config struct {
	// Host and Port locate the Qdrant gRPC endpoint.
	Host string
	Port int

	// APIKey authenticates against Qdrant Cloud. Empty for local instances.
	APIKey string

	// Collection is the namespace this store is scoped to. Required.
	Collection string

	// Dimension is the vector size the collection is created with. Required.
	Dimension int

	// DefaultScoreThreshold applies when a search passes no threshold.
	DefaultScoreThreshold float64
}

// Store is a vectorstore.Store over one Qdrant collection.
type Store struct {
	client *qdrant.Client
	cfg    Config
}

// New connects to Qdrant and returns a store scoped to cfg.Collection.
// The collection itself is created lazily by EnsureCollection.
func New(cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// EnsureCollection creates the collection with the configured dimension and
// cosine distance if it does not already exist. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return core.Errorf(core.KindStore, "qdrant.EnsureCollection", "check collection %q: %w", s.cfg.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return core.Errorf(core.KindStore, "qdrant.EnsureCollection", "create collection %q: %w", s.cfg.Collection, err)
	}
	log.Printf("[STORE] Created qdrant collection %q (dim=%d, cosine)", s.cfg.Collection, s.cfg.Dimension)
	return nil
}

// Upsert writes or overwrites one point. An empty id gets a fresh UUID.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) (string, error) {
	ids, err := s.UpsertBatch(ctx, []vectorstore.Point{{ID: id, Vector: vector, Payload: payload}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// UpsertBatch writes multiple points in one round trip, ids in input order.
func (s *Store) UpsertBatch(ctx context.Context, points []vectorstore.Point) ([]string, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(points))
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if len(p.Vector) != s.cfg.Dimension {
			return nil, core.Errorf(core.KindStore, "qdrant.Upsert",
				"vector dimension %d does not match collection dimension %d", len(p.Vector), s.cfg.Dimension)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		ids[i] = p.ID
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         structs,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, core.Errorf(core.KindStore, "qdrant.Upsert", "upsert %d points: %w", len(points), err)
	}
	return ids, nil
}

// Search returns similarity hits above the threshold, descending by score.
func (s *Store) Search(ctx context.Context, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	if opts.Limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "qdrant.Search", "limit must be positive, got %d", opts.Limit)
	}
	if len(vector) != s.cfg.Dimension {
		return nil, core.Errorf(core.KindStore, "qdrant.Search",
			"query dimension %d does not match collection dimension %d", len(vector), s.cfg.Dimension)
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	threshold := s.cfg.DefaultScoreThreshold
	if opts.ScoreThreshold != nil {
		threshold = *opts.ScoreThreshold
	}

	filter, err := buildFilter(opts.Filter)
	if err != nil {
		return nil, core.E(core.KindValidation, "qdrant.Search", err)
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, core.Errorf(core.KindStore, "qdrant.Search", "query: %w", err)
	}

	results := make([]vectorstore.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, vectorstore.SearchResult{
			ID:      pointID(hit.Id),
			Score:   float64(hit.Score),
			Payload: decodeValueMap(hit.Payload),
		})
	}
	return results, nil
}

// GetByIDs returns existing points with vectors and payloads; missing ids
// are silently omitted by the service.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]vectorstore.Point, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	retrieved, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, core.Errorf(core.KindStore, "qdrant.GetByIDs", "retrieve %d points: %w", len(ids), err)
	}

	points := make([]vectorstore.Point, 0, len(retrieved))
	for _, p := range retrieved {
		points = append(points, vectorstore.Point{
			ID:      pointID(p.Id),
			Vector:  p.GetVectors().GetVector().GetData(),
			Payload: decodeValueMap(p.Payload),
		})
	}
	return points, nil
}

// UpdatePayload overwrites payload fields on an existing point. Best
// effort: failure reports false.
func (s *Store) UpdatePayload(ctx context.Context, id string, payload map[string]interface{}) bool {
	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.cfg.Collection,
		Payload:        qdrant.NewValueMap(payload),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(id)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		log.Printf("[STORE] Payload update for %s failed: %v", id, err)
	}
	return err == nil
}

// Delete removes one point. Best effort.
func (s *Store) Delete(ctx context.Context, id string) bool {
	return s.DeleteBatch(ctx, []string{id})
}

// DeleteBatch removes multiple points. Best effort.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) bool {
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		log.Printf("[STORE] Delete of %d points failed: %v", len(ids), err)
	}
	return err == nil
}

// Stats summarizes the collection. Payload fields are derived by scrolling
// a sample of up to 100 points and unioning their payload keys.
func (s *Store) Stats(ctx context.Context) (*vectorstore.CollectionStats, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return nil, core.Errorf(core.KindStore, "qdrant.Stats", "collection info: %w", err)
	}

	sample, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          qdrant.PtrOf(uint32(100)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, core.Errorf(core.KindStore, "qdrant.Stats", "scroll sample: %w", err)
	}

	seen := make(map[string]struct{})
	for _, p := range sample {
		for k := range p.Payload {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	return &vectorstore.CollectionStats{
		Name:           s.cfg.Collection,
		VectorCount:    info.GetVectorsCount(),
		PointCount:     info.GetPointsCount(),
		Status:         info.GetStatus().String(),
		Dimension:      s.cfg.Dimension,
		DistanceMetric: "cosine",
		PayloadFields:  fields,
		SampleSize:     len(sample),
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// buildFilter translates the portable filter into Qdrant conditions.
// Exact values become match conditions, ranges become range conditions;
// all conditions are conjunctive.
func buildFilter(f vectorstore.Filter) (*qdrant.Filter, error) {
	if len(f) == 0 {
		return nil, nil
	}

	must := make([]*qdrant.Condition, 0, len(f))
	for field, cond := range f {
		switch c := cond.(type) {
		case vectorstore.Range:
			must = append(must, rangeCondition(field, c))
		case *vectorstore.Range:
			if c == nil {
				return nil, fmt.Errorf("nil range for field %q", field)
			}
			must = append(must, rangeCondition(field, *c))
		case string:
			must = append(must, qdrant.NewMatch(field, c))
		case bool:
			must = append(must, qdrant.NewMatchBool(field, c))
		case int:
			must = append(must, qdrant.NewMatchInt(field, int64(c)))
		case int64:
			must = append(must, qdrant.NewMatchInt(field, c))
		case float64:
			// Qdrant has no float match; treat as a degenerate range.
			must = append(must, rangeCondition(field, vectorstore.Range{GTE: &c, LTE: &c}))
		default:
			return nil, fmt.Errorf("unsupported filter value for field %q: %T", field, cond)
		}
	}
	return &qdrant.Filter{Must: must}, nil
}

func rangeCondition(field string, r vectorstore.Range) *qdrant.Condition {
	return qdrant.NewRange(field, &qdrant.Range{Gte: r.GTE, Lte: r.LTE})
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// decodeValueMap converts a Qdrant payload into plain Go values.
func decodeValueMap(values map[string]*qdrant.Value) map[string]interface{} {
	payload := make(map[string]interface{}, len(values))
	for k, v := range values {
		payload[k] = decodeValue(v)
	}
	return payload
}

func decodeValue(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return decodeValueMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return nil
	}
}
