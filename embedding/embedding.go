// Package embedding converts text into fixed-dimension vectors through an
// external provider, with a bounded in-process cache in front of it.
//
// Architecture:
//   - Provider: the external embedding service (OpenAI, ONNX, mock)
//   - Cache: memoizes Provider results by exact input text
//
// The cache is the only shared mutable structure in the retrieval core and
// is safe for concurrent use. A racing miss on the same text may cost one
// duplicate provider call; it never corrupts an entry.
package embedding

import (
	"context"
)

// Provider is the external embedding service boundary.
// Implementations: openai.Provider (API-based), onnx.Provider (local model),
// mock.Provider (testing).
type Provider interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one provider round trip,
	// returning one vector per input in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the provider model, e.g. "text-embedding-ada-002".
	Model() string

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// EmbeddedText pairs an input text with its embedding and position.
// Produced by Cache.EmbedWithMetadata; Index matches the input slice.
type EmbeddedText struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Index     int       `json:"index"`
}

// Stats describes the cache state for diagnostics.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	KeysAdded   uint64 `json:"keys_added"`
	KeysEvicted uint64 `json:"keys_evicted"`
	MaxBytes    int64  `json:"max_bytes"`
	TTL         string `json:"ttl"`
	Model       string `json:"model"`
	Dimension   int    `json:"dimension"`
}
