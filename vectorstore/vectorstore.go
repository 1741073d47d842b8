// Package vectorstore defines the vector database boundary: namespaced
// collections of points with filtered similarity search.
//
// A Store is scoped to exactly one collection. Collections are created
// lazily on first use with a fixed dimension and cosine distance; the
// dimension is immutable for the collection's lifetime, and a vector of
// any other dimension is rejected before it reaches the backend.
//
// Implementations: chromem.Store (embedded, in-process) and qdrant.Store
// (remote service).
package vectorstore

import "context"

// Point is a stored vector with its payload. The payload always carries
// enough information (raw text, optional title, source metadata) to render
// a human-readable result without re-embedding anything.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchResult is one similarity hit. Transient, produced per query.
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// Range is a numeric payload constraint. Nil bounds are open.
type Range struct {
	GTE *float64
	LTE *float64
}

// Filter maps payload fields to constraints: either an exact-match value
// or a Range. Multiple fields are conjunctive.
type Filter map[string]interface{}

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	// Limit caps the number of results. Required, must be positive.
	Limit int

	// ScoreThreshold excludes results scoring below it. Nil applies the
	// store's configured default.
	ScoreThreshold *float64

	// Filter restricts results by payload fields.
	Filter Filter
}

// CollectionStats summarizes a collection.
type CollectionStats struct {
	Name           string `json:"name"`
	VectorCount    uint64 `json:"vector_count"`
	PointCount     uint64 `json:"point_count"`
	Status         string `json:"status"`
	Dimension      int    `json:"dimension"`
	DistanceMetric string `json:"distance_metric"`

	// PayloadFields is derived by sampling up to 100 points and unioning
	// their payload keys. An approximation, not an exhaustive schema.
	PayloadFields []string `json:"payload_fields"`
	SampleSize    int      `json:"sample_size"`
}

// Store is the vector storage backend for one collection.
type Store interface {
	// EnsureCollection creates the collection if absent. Idempotent; an
	// already existing collection is success, not an error.
	EnsureCollection(ctx context.Context) error

	// Upsert writes or overwrites a point and returns its id. An empty id
	// gets a fresh UUID.
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) (string, error)

	// UpsertBatch writes multiple points in one round trip and returns
	// their ids in input order. A failure fails the whole call.
	UpsertBatch(ctx context.Context, points []Point) ([]string, error)

	// Search returns results ordered by descending similarity. An empty
	// result set is not an error.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error)

	// GetByIDs returns the points that exist; missing ids are silently
	// omitted.
	GetByIDs(ctx context.Context, ids []string) ([]Point, error)

	// UpdatePayload overwrites payload fields on an existing point.
	// Best effort: failure is reported as false, never as an error.
	UpdatePayload(ctx context.Context, id string, payload map[string]interface{}) bool

	// Delete removes one point. Best effort.
	Delete(ctx context.Context, id string) bool

	// DeleteBatch removes multiple points. Best effort.
	DeleteBatch(ctx context.Context, ids []string) bool

	// Stats summarizes the collection.
	Stats(ctx context.Context) (*CollectionStats, error)

	// Close releases backend resources.
	Close() error
}

// Matches reports whether payload satisfies every filter condition.
// Numeric comparisons treat all numeric types as float64, matching JSON
// round-trip semantics.
func (f Filter) Matches(payload map[string]interface{}) bool {
	for field, cond := range f {
		value, ok := payload[field]
		if !ok {
			return false
		}
		switch c := cond.(type) {
		case Range:
			if !c.contains(value) {
				return false
			}
		case *Range:
			if c == nil || !c.contains(value) {
				return false
			}
		default:
			if !looseEqual(value, cond) {
				return false
			}
		}
	}
	return true
}

// contains reports whether value is numeric and inside the range.
func (r Range) contains(value interface{}) bool {
	n, ok := toFloat(value)
	if !ok {
		return false
	}
	if r.GTE != nil && n < *r.GTE {
		return false
	}
	if r.LTE != nil && n > *r.LTE {
		return false
	}
	return true
}

// looseEqual compares payload values across the numeric type erasure that
// JSON serialization introduces.
func looseEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
