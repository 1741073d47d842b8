package notes

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/search"
)

// Service creates and removes notes across both the search engine and the
// metadata store. The vector write happens first; if the metadata row
// fails the note is still searchable and SaveNote can be retried with the
// same vector id.
type Service struct {
	engine *search.Engine
	store  *Store
}

// NewService wires a search engine to a metadata store.
func NewService(engine *search.Engine, store *Store) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("notes service requires a search engine")
	}
	if store == nil {
		return nil, fmt.Errorf("notes service requires a metadata store")
	}
	return &Service{engine: engine, store: store}, nil
}

// CreateNote indexes the note content and records its metadata row.
// The returned vector id identifies the note in both stores.
func (s *Service) CreateNote(ctx context.Context, agent, content string, metadata map[string]interface{}) (string, error) {
	now := time.Now().UTC()
	payload := map[string]interface{}{
		"text":       content,
		"agent":      agent,
		"type":       "note",
		"created_at": now.Format(time.RFC3339),
	}
	for k, v := range metadata {
		payload[k] = v
	}

	id, err := s.engine.Index(ctx, content, payload)
	if err != nil {
		return "", err
	}

	err = s.store.SaveNote(ctx, Note{
		Agent:     agent,
		Content:   content,
		VectorID:  id,
		Metadata:  metadata,
		CreatedAt: now,
	})
	if err != nil {
		return id, fmt.Errorf("note %s indexed but metadata write failed: %w", id, err)
	}
	return id, nil
}

// RecordExchange stores a conversation row for an exchange the agent has
// already indexed under vectorID.
func (s *Service) RecordExchange(ctx context.Context, agent, userInput, response, vectorID string) error {
	return s.store.SaveConversation(ctx, Conversation{
		Agent:     agent,
		UserInput: userInput,
		Response:  response,
		VectorID:  vectorID,
	})
}

// DeleteNote removes a note from the search engine and its metadata row.
func (s *Service) DeleteNote(ctx context.Context, vectorID string) error {
	if !s.engine.Remove(ctx, vectorID) {
		log.Printf("[NOTES] vector %s already absent from the search engine", vectorID)
	}
	return s.store.DeleteNote(ctx, vectorID)
}
