package chromem_test

import (
	"context"
	"testing"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore/chromem"
)

func newTestStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.New(chromemgo.NewDB(), chromem.Config{
		Collection: "test_memories",
		Dimension:  3,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestStore_UpsertAndSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	payload := map[string]interface{}{
		"text":  "hello world",
		"agent": "cara",
		"year":  2024,
	}
	id, err := store.Upsert(ctx, "", []float32{1, 0, 0}, payload)
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated id for an empty upsert id")
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].ID != id {
		t.Errorf("Result id %s, want %s", results[0].ID, id)
	}
	if results[0].Score < 0.99 {
		t.Errorf("Identical vectors should score ~1.0, got %g", results[0].Score)
	}
	if results[0].Payload["text"] != "hello world" || results[0].Payload["agent"] != "cara" {
		t.Errorf("Payload not round-tripped: %v", results[0].Payload)
	}
}

func TestStore_UpsertIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Upsert(ctx, "fixed-id", []float32{1, 0, 0}, map[string]interface{}{"rev": "first"})
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	if _, err := store.Upsert(ctx, id, []float32{1, 0, 0}, map[string]interface{}{"rev": "second"}); err != nil {
		t.Fatalf("Failed to re-upsert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.PointCount != 1 {
		t.Errorf("Re-upserting the same id should not grow the collection, got %d points", stats.PointCount)
	}

	points, err := store.GetByIDs(ctx, []string{id})
	if err != nil {
		t.Fatalf("Failed to get point: %v", err)
	}
	if len(points) != 1 || points[0].Payload["rev"] != "second" {
		t.Errorf("Expected the second payload revision, got %v", points)
	}
}

func TestStore_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "", []float32{1, 0}, nil); err == nil {
		t.Error("Expected a 2-dim vector to be rejected by a 3-dim collection")
	}
	if _, err := store.Search(ctx, []float32{1, 0}, vectorstore.SearchOptions{Limit: 1}); err == nil {
		t.Error("Expected a 2-dim query to be rejected by a 3-dim collection")
	}
}

func TestStore_SearchThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "near", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if _, err := store.Upsert(ctx, "far", []float32{0, 1, 0}, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	threshold := 0.5
	results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{
		Limit:          10,
		ScoreThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "near" {
		t.Errorf("Expected only the near point above threshold, got %v", results)
	}
}

func TestStore_SearchFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	points := []vectorstore.Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"agent": "cara", "priority": 1}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]interface{}{"agent": "finn", "priority": 5}},
		{ID: "c", Vector: []float32{0.8, 0.2, 0}, Payload: map[string]interface{}{"agent": "cara", "priority": 9}},
	}
	if _, err := store.UpsertBatch(ctx, points); err != nil {
		t.Fatalf("Failed to upsert batch: %v", err)
	}

	t.Run("equality", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{
			Limit:  10,
			Filter: vectorstore.Filter{"agent": "cara"},
		})
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 cara points, got %d", len(results))
		}
		for _, r := range results {
			if r.Payload["agent"] != "cara" {
				t.Errorf("Filter leaked point %s with agent %v", r.ID, r.Payload["agent"])
			}
		}
	})

	t.Run("range", func(t *testing.T) {
		gte := 4.0
		results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{
			Limit:  10,
			Filter: vectorstore.Filter{"priority": vectorstore.Range{GTE: &gte}},
		})
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 points with priority >= 4, got %d", len(results))
		}
	})

	t.Run("combined", func(t *testing.T) {
		gte := 4.0
		results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{
			Limit: 10,
			Filter: vectorstore.Filter{
				"agent":    "cara",
				"priority": vectorstore.Range{GTE: &gte},
			},
		})
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(results) != 1 || results[0].ID != "c" {
			t.Errorf("Expected only point c, got %v", results)
		}
	})
}

func TestStore_SearchLimitClampedToCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "only", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchOptions{Limit: 50})
	if err != nil {
		t.Fatalf("A limit above the collection size should not error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestStore_SearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, vectorstore.SearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Searching an empty collection should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestStore_GetByIDsSkipsMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "present", []float32{1, 0, 0}, map[string]interface{}{"text": "here"}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	points, err := store.GetByIDs(ctx, []string{"present", "absent"})
	if err != nil {
		t.Fatalf("Failed to get points: %v", err)
	}
	if len(points) != 1 || points[0].ID != "present" {
		t.Errorf("Expected only the present point, got %v", points)
	}
}

func TestStore_UpdatePayload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "p", []float32{1, 0, 0}, map[string]interface{}{"state": "old"}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	if !store.UpdatePayload(ctx, "p", map[string]interface{}{"state": "new"}) {
		t.Fatal("Expected payload update of an existing point to succeed")
	}
	if store.UpdatePayload(ctx, "missing", map[string]interface{}{}) {
		t.Error("Expected payload update of a missing point to report false")
	}

	points, err := store.GetByIDs(ctx, []string{"p"})
	if err != nil {
		t.Fatalf("Failed to get point: %v", err)
	}
	if points[0].Payload["state"] != "new" {
		t.Errorf("Payload not updated: %v", points[0].Payload)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "doomed", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	if !store.Delete(ctx, "doomed") {
		t.Fatal("Expected delete of an existing point to succeed")
	}

	points, err := store.GetByIDs(ctx, []string{"doomed"})
	if err != nil {
		t.Fatalf("Failed to get points: %v", err)
	}
	if len(points) != 0 {
		t.Error("Deleted point still present")
	}
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "", []float32{1, 0, 0}, map[string]interface{}{"text": "x", "agent": "cara"}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.Name != "test_memories" {
		t.Errorf("Stats name %q", stats.Name)
	}
	if stats.PointCount != 1 || stats.VectorCount != 1 {
		t.Errorf("Expected 1 point, got %d/%d", stats.PointCount, stats.VectorCount)
	}
	if stats.Dimension != 3 || stats.DistanceMetric != "cosine" {
		t.Errorf("Unexpected geometry: %d %s", stats.Dimension, stats.DistanceMetric)
	}
	if len(stats.PayloadFields) != 2 {
		t.Errorf("Expected 2 sampled payload fields, got %v", stats.PayloadFields)
	}
}
