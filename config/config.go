// Package config loads SDK configuration from the environment.
//
// All settings are read with the MNEMO_ prefix, e.g. MNEMO_VECTOR_DIMENSION.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the environment-driven configuration surface consumed by the
// retrieval core. Field defaults match the original deployment profile
// (OpenAI ada-002 vectors, cosine similarity).
type Config struct {
	// VectorDimension is the embedding size every collection is created with.
	VectorDimension int `envconfig:"VECTOR_DIMENSION" default:"1536"`

	// SimilarityThreshold is the default minimum score for vector search.
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.7"`

	// CollectionName is the shared collection for plain notes. Agents get
	// their own collections derived from the agent name.
	CollectionName string `envconfig:"COLLECTION_NAME" default:"memories"`

	// EmbeddingModel identifies the embedding provider model.
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`

	// ChatModel identifies the chat-completion model used by agents.
	ChatModel string `envconfig:"CHAT_MODEL" default:"claude-sonnet-4-20250514"`

	// EmbeddingBatchSize caps how many texts go into one provider call.
	EmbeddingBatchSize int `envconfig:"EMBEDDING_BATCH_SIZE" default:"100"`

	// EmbeddingBatchPause is the pause between provider batch calls,
	// a deliberate throttle against provider rate limits.
	EmbeddingBatchPause time.Duration `envconfig:"EMBEDDING_BATCH_PAUSE" default:"100ms"`

	// CacheMaxBytes bounds the embedding cache. Zero disables the bound.
	CacheMaxBytes int64 `envconfig:"CACHE_MAX_BYTES" default:"67108864"`

	// CacheTTL expires cached embeddings by age. Zero keeps them for the
	// process lifetime.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	// QdrantHost and QdrantPort locate the Qdrant backend when used.
	QdrantHost string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort int    `envconfig:"QDRANT_PORT" default:"6334"`

	// LexicalIndexPath is the on-disk bleve index location. Empty keeps the
	// index in memory.
	LexicalIndexPath string `envconfig:"LEXICAL_INDEX_PATH" default:""`

	// MetadataDSN is the sqlite DSN for note/conversation metadata rows.
	MetadataDSN string `envconfig:"METADATA_DSN" default:"file:mnemo.db"`

	// APIKeys for the external providers. Left empty when the corresponding
	// provider is not used (e.g. ONNX embedder, mock in tests).
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY" default:""`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY" default:""`
}

// Load reads configuration from the environment with the MNEMO_ prefix.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MNEMO", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c *Config) Validate() error {
	if c.VectorDimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.VectorDimension)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.EmbeddingBatchSize)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in [-1,1], got %g", c.SimilarityThreshold)
	}
	return nil
}
