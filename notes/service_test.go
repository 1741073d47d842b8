package notes_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo-go-sdk/embedding"
	"github.com/mnemo-ai/mnemo-go-sdk/embedding/provider/mock"
	"github.com/mnemo-ai/mnemo-go-sdk/lexical"
	"github.com/mnemo-ai/mnemo-go-sdk/notes"
	"github.com/mnemo-ai/mnemo-go-sdk/search"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore/chromem"
)

func newTestService(t *testing.T) (*notes.Service, *search.Engine, *notes.Store) {
	t.Helper()

	cache, err := embedding.New(mock.New(16), embedding.Config{BatchSize: 100})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(cache.Close)

	store, err := chromem.New(chromemgo.NewDB(), chromem.Config{
		Collection:            "notes",
		Dimension:             16,
		DefaultScoreThreshold: -1,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	lex, err := lexical.New("")
	if err != nil {
		t.Fatalf("Failed to create lexical index: %v", err)
	}
	t.Cleanup(func() { lex.Close() })

	engine, err := search.NewEngine(cache, store, lex)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	meta := newTestStore(t)
	svc, err := notes.NewService(engine, meta)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc, engine, meta
}

func TestService_CreateNoteWritesBothStores(t *testing.T) {
	ctx := context.Background()
	svc, engine, meta := newTestService(t)

	id, err := svc.CreateNote(ctx, "cara", "the refund policy covers thirty days", map[string]interface{}{"topic": "policy"})
	if err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a vector id")
	}

	// Searchable through the engine.
	res, err := engine.SemanticSearch(ctx, "the refund policy covers thirty days", vectorstore.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if res.TotalFound != 1 || res.Results[0].ID != id {
		t.Errorf("Note not searchable under its id: %+v", res)
	}
	if res.Results[0].Payload["agent"] != "cara" || res.Results[0].Payload["type"] != "note" {
		t.Errorf("Payload incomplete: %v", res.Results[0].Payload)
	}

	// Recorded in the metadata store under the same id.
	row, err := meta.NoteByVectorID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to fetch metadata row: %v", err)
	}
	if row.Agent != "cara" || row.Metadata["topic"] != "policy" {
		t.Errorf("Metadata row mismatch: %+v", row)
	}
}

func TestService_DeleteNoteRemovesBothStores(t *testing.T) {
	ctx := context.Background()
	svc, engine, meta := newTestService(t)

	id, err := svc.CreateNote(ctx, "cara", "soon to be deleted", nil)
	if err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}

	if err := svc.DeleteNote(ctx, id); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}

	if _, err := meta.NoteByVectorID(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected the metadata row to be gone, got %v", err)
	}
	if _, err := engine.FindSimilar(ctx, id, 1); err == nil {
		t.Error("Expected the vector point to be gone")
	}
}

func TestService_RecordExchange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.RecordExchange(ctx, "cara", "How do refunds work?", "Within thirty days.", "vec-1"); err != nil {
		t.Fatalf("Failed to record exchange: %v", err)
	}
	// Retrying the same vector id is a refresh, not a duplicate.
	if err := svc.RecordExchange(ctx, "cara", "How do refunds work?", "Within thirty days.", "vec-1"); err != nil {
		t.Fatalf("Failed to retry exchange: %v", err)
	}
}
