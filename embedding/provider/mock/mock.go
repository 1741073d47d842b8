// Package mock provides a deterministic embedding provider for testing.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
)

// Provider generates deterministic embeddings from a text hash, so equal
// texts always map to equal vectors without any model files or network.
// It counts provider invocations, which lets tests assert cache behavior.
type Provider struct {
	dimensions int
	model      string

	calls atomic.Int64

	mu     sync.RWMutex
	preset map[string][]float32
}

// New creates a mock provider with the given vector dimension.
func New(dimensions int) *Provider {
	return &Provider{
		dimensions: dimensions,
		model:      "mock-embedder",
		preset:     make(map[string][]float32),
	}
}

// SetVector pins the vector returned for an exact text. Pinned vectors let
// tests stage known similarity relationships between texts.
func (p *Provider) SetVector(text string, vec []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preset[text] = vec
}

// Calls returns how many times the provider was invoked, counting each
// batch call once per input text.
func (p *Provider) Calls() int64 {
	return p.calls.Load()
}

// Embed creates a deterministic embedding from the text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	return p.vectorFor(text), nil
}

// EmbedBatch embeds each text in input order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vectorFor(text)
	}
	return out, nil
}

// Model identifies the mock model.
func (p *Provider) Model() string {
	return p.model
}

// Dimensions returns the embedding size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

func (p *Provider) vectorFor(text string) []float32 {
	p.mu.RLock()
	pinned, ok := p.preset[text]
	p.mu.RUnlock()
	if ok {
		out := make([]float32, len(pinned))
		copy(out, pinned)
		return out
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		// LCG stepped from the text hash keeps output stable per text.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec)
}

// normalize scales vec to unit length so cosine scores stay in range.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
