// Package notes persists note and conversation metadata rows alongside
// the vector store. The vector store is the source of truth: every row is
// keyed by its vector point id and writes are idempotent on that key, so a
// failed metadata write can simply be retried.
package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Note is one stored note row.
type Note struct {
	ID        int64                  `json:"id"`
	Agent     string                 `json:"agent"`
	Content   string                 `json:"content"`
	VectorID  string                 `json:"vector_id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Conversation is one stored exchange row.
type Conversation struct {
	ID        int64     `json:"id"`
	Agent     string    `json:"agent"`
	UserInput string    `json:"user_input"`
	Response  string    `json:"response"`
	VectorID  string    `json:"vector_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the sqlite-backed metadata store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_name  TEXT NOT NULL,
	content     TEXT NOT NULL,
	vector_id   TEXT NOT NULL UNIQUE,
	metadata    TEXT,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_name     TEXT NOT NULL,
	user_input     TEXT NOT NULL,
	agent_response TEXT NOT NULL,
	vector_id      TEXT NOT NULL UNIQUE,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_agent ON notes(agent_name);
CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_name);
`

// Open opens (and migrates) the metadata store at dsn.
// Use ":memory:" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metadata db: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveNote inserts or refreshes the note row for its vector id.
func (s *Store) SaveNote(ctx context.Context, n Note) error {
	if n.VectorID == "" {
		return fmt.Errorf("note is missing its vector id")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if len(n.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal note metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (agent_name, content, vector_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vector_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			content    = excluded.content,
			metadata   = excluded.metadata`,
		n.Agent, n.Content, n.VectorID, nullableText(metadata), n.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save note %s: %w", n.VectorID, err)
	}
	return nil
}

// SaveConversation inserts or refreshes the exchange row for its vector id.
func (s *Store) SaveConversation(ctx context.Context, c Conversation) error {
	if c.VectorID == "" {
		return fmt.Errorf("conversation is missing its vector id")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (agent_name, user_input, agent_response, vector_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vector_id) DO UPDATE SET
			agent_name     = excluded.agent_name,
			user_input     = excluded.user_input,
			agent_response = excluded.agent_response`,
		c.Agent, c.UserInput, c.Response, c.VectorID, c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", c.VectorID, err)
	}
	return nil
}

// NoteByVectorID fetches one note row. Missing rows report sql.ErrNoRows.
func (s *Store) NoteByVectorID(ctx context.Context, vectorID string) (*Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_name, content, vector_id, metadata, created_at
		FROM notes WHERE vector_id = ?`, vectorID)
	return scanNote(row)
}

// ListNotes returns the most recent notes for an agent, newest first.
func (s *Store) ListNotes(ctx context.Context, agent string, limit int) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_name, content, vector_id, metadata, created_at
		FROM notes WHERE agent_name = ?
		ORDER BY id DESC LIMIT ?`, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes for %s: %w", agent, err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// DeleteNote removes the note row for a vector id. Missing rows are not
// an error.
func (s *Store) DeleteNote(ctx context.Context, vectorID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE vector_id = ?`, vectorID)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", vectorID, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*Note, error) {
	var n Note
	var metadata sql.NullString
	var createdAt string
	if err := row.Scan(&n.ID, &n.Agent, &n.Content, &n.VectorID, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal note metadata: %w", err)
		}
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse note timestamp: %w", err)
	}
	n.CreatedAt = ts
	return &n, nil
}

func nullableText(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
