package embedding

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
)

// Config holds cache and batching settings.
type Config struct {
	// BatchSize caps how many texts go into one provider call.
	// Default: 100.
	BatchSize int

	// BatchPause is the pause between provider batch calls. Sequential by
	// design; the pause throttles against provider rate limits.
	// Zero applies the default of 100ms; negative disables the pause.
	BatchPause time.Duration

	// MaxBytes bounds the cache by the byte size of stored vectors.
	// Zero means no practical bound.
	MaxBytes int64

	// TTL expires cached entries by age. Zero keeps entries for the
	// process lifetime.
	TTL time.Duration
}

// DefaultConfig matches the original deployment profile.
var DefaultConfig = Config{
	BatchSize:  100,
	BatchPause: 100 * time.Millisecond,
	MaxBytes:   64 << 20,
	TTL:        time.Hour,
}

// Cache memoizes provider embeddings by exact input text.
//
// Eviction is a first-class policy: entries are bounded by MaxBytes
// (vector byte size as cost) and expire after TTL. Both are enforced by
// ristretto, not merely declared.
type Cache struct {
	provider Provider
	cache    *ristretto.Cache
	limiter  *rate.Limiter
	cfg      Config
}

// New creates a caching front for the provider.
func New(provider Provider, cfg Config) (*Cache, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = DefaultConfig.BatchPause
	}
	maxCost := cfg.MaxBytes
	if maxCost <= 0 {
		maxCost = math.MaxInt64
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 20, // ~10x expected entries for admission accuracy
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.BatchPause > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchPause), 1)
	}

	return &Cache{
		provider: provider,
		cache:    rc,
		limiter:  limiter,
		cfg:      cfg,
	}, nil
}

// Embed returns the embedding for text, serving from cache when the exact
// text was embedded before.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.EmbedUncached(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(text, vec, vectorCost(vec), c.cfg.TTL)
	// Publish the entry so an immediately following identical request
	// hits the cache instead of the provider.
	c.cache.Wait()

	return vec, nil
}

// EmbedUncached bypasses the cache and always calls the provider.
func (c *Cache) EmbedUncached(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, core.E(core.KindProvider, "embedding.Embed", err)
	}
	if len(vec) == 0 {
		return nil, core.Errorf(core.KindProvider, "embedding.Embed", "provider returned empty vector for text of length %d", len(text))
	}
	return vec, nil
}

// EmbedBatch embeds texts in chunks of at most BatchSize, one provider call
// per chunk, with a bounded pause between chunks. Output order matches
// input order. A chunk failure fails the whole batch.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		if start > 0 && c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, core.E(core.KindProvider, "embedding.EmbedBatch", err)
			}
		}

		vecs, err := c.provider.EmbedBatch(ctx, chunk)
		if err != nil {
			return nil, core.Errorf(core.KindProvider, "embedding.EmbedBatch",
				"chunk %d/%d: %w", start/c.cfg.BatchSize+1, (len(texts)+c.cfg.BatchSize-1)/c.cfg.BatchSize, err)
		}
		if len(vecs) != len(chunk) {
			return nil, core.Errorf(core.KindProvider, "embedding.EmbedBatch",
				"provider returned %d vectors for %d inputs", len(vecs), len(chunk))
		}
		out = append(out, vecs...)
	}

	return out, nil
}

// EmbedWithMetadata embeds texts and pairs each result with its input text,
// model, dimension, and input position.
func (c *Cache) EmbedWithMetadata(ctx context.Context, texts []string) ([]EmbeddedText, error) {
	vecs, err := c.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]EmbeddedText, len(texts))
	for i, text := range texts {
		results[i] = EmbeddedText{
			Text:      text,
			Embedding: vecs[i],
			Model:     c.provider.Model(),
			Dimension: len(vecs[i]),
			Index:     i,
		}
	}
	return results, nil
}

// Validate reports whether vec is a finite numeric vector of exactly the
// configured dimension.
func (c *Cache) Validate(vec []float32) bool {
	if len(vec) != c.Dimensions() {
		return false
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// Dimensions returns the configured embedding dimension. This is a static
// setting taken from the provider, not derived from actual output.
func (c *Cache) Dimensions() int {
	return c.provider.Dimensions()
}

// Model returns the underlying provider's model identifier.
func (c *Cache) Model() string {
	return c.provider.Model()
}

// Flush drops every cached embedding.
func (c *Cache) Flush() {
	c.cache.Clear()
	log.Printf("[EMBED] Cache flushed")
}

// Stats returns cache counters and configuration for diagnostics.
func (c *Cache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		MaxBytes:    c.cfg.MaxBytes,
		TTL:         c.cfg.TTL.String(),
		Model:       c.provider.Model(),
		Dimension:   c.provider.Dimensions(),
	}
}

// Close releases cache resources.
func (c *Cache) Close() {
	c.cache.Close()
}

// vectorCost is the stored byte size of a vector, used as ristretto cost.
func vectorCost(vec []float32) int64 {
	return int64(len(vec) * 4)
}
