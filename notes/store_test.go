package notes_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/notes"
)

func newTestStore(t *testing.T) *notes.Store {
	t.Helper()
	store, err := notes.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndFetchNote(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	note := notes.Note{
		Agent:    "cara",
		Content:  "the refund policy covers thirty days",
		VectorID: "vec-1",
		Metadata: map[string]interface{}{"topic": "policy"},
	}
	if err := store.SaveNote(ctx, note); err != nil {
		t.Fatalf("Failed to save note: %v", err)
	}

	got, err := store.NoteByVectorID(ctx, "vec-1")
	if err != nil {
		t.Fatalf("Failed to fetch note: %v", err)
	}
	if got.Agent != "cara" || got.Content != note.Content {
		t.Errorf("Note round-trip mismatch: %+v", got)
	}
	if got.Metadata["topic"] != "policy" {
		t.Errorf("Metadata not round-tripped: %v", got.Metadata)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected a populated creation time")
	}
}

func TestStore_SaveNoteIdempotentByVectorID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := notes.Note{Agent: "cara", Content: "first revision", VectorID: "vec-1"}
	if err := store.SaveNote(ctx, first); err != nil {
		t.Fatalf("Failed to save note: %v", err)
	}
	// Retrying the same vector id must update in place, not duplicate.
	second := notes.Note{Agent: "cara", Content: "second revision", VectorID: "vec-1"}
	if err := store.SaveNote(ctx, second); err != nil {
		t.Fatalf("Failed to re-save note: %v", err)
	}

	list, err := store.ListNotes(ctx, "cara", 10)
	if err != nil {
		t.Fatalf("Failed to list notes: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected one row after a retried write, got %d", len(list))
	}
	if list[0].Content != "second revision" {
		t.Errorf("Expected the retried content, got %q", list[0].Content)
	}
}

func TestStore_SaveNoteRequiresVectorID(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveNote(context.Background(), notes.Note{Content: "orphan"}); err == nil {
		t.Fatal("Expected a note without a vector id to be rejected")
	}
}

func TestStore_ListNotesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, id := range []string{"vec-1", "vec-2", "vec-3"} {
		err := store.SaveNote(ctx, notes.Note{
			Agent:     "cara",
			Content:   id,
			VectorID:  id,
			CreatedAt: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Failed to save %s: %v", id, err)
		}
	}
	if err := store.SaveNote(ctx, notes.Note{Agent: "finn", Content: "other agent", VectorID: "vec-x"}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	list, err := store.ListNotes(ctx, "cara", 2)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected the limit to cap at 2, got %d", len(list))
	}
	if list[0].VectorID != "vec-3" || list[1].VectorID != "vec-2" {
		t.Errorf("Expected newest first, got %s then %s", list[0].VectorID, list[1].VectorID)
	}
}

func TestStore_NoteByVectorIDMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.NoteByVectorID(context.Background(), "no-such-vector")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestStore_DeleteNote(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveNote(ctx, notes.Note{Agent: "cara", Content: "doomed", VectorID: "vec-1"}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.DeleteNote(ctx, "vec-1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := store.DeleteNote(ctx, "vec-1"); err != nil {
		t.Fatalf("Deleting an absent row should not error: %v", err)
	}
	if _, err := store.NoteByVectorID(ctx, "vec-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected the row to be gone, got %v", err)
	}
}

func TestStore_SaveConversationIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	conv := notes.Conversation{
		Agent:     "cara",
		UserInput: "How do refunds work?",
		Response:  "Within thirty days.",
		VectorID:  "vec-1",
	}
	if err := store.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("Failed to save conversation: %v", err)
	}
	conv.Response = "Within thirty days of purchase."
	if err := store.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("Failed to re-save conversation: %v", err)
	}

	if err := store.SaveConversation(ctx, notes.Conversation{Agent: "cara", UserInput: "x", Response: "y"}); err == nil {
		t.Error("Expected a conversation without a vector id to be rejected")
	}
}
