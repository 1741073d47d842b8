// Package search orchestrates the retrieval pipeline: embedding queries,
// vector-store similarity search, keyword search, and the fusion of both
// rankings into one list.
//
// The Engine also owns write-through indexing so the vector store and the
// lexical index stay in sync for every stored point.
package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/embedding"
	"github.com/mnemo-ai/mnemo-go-sdk/lexical"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// Default fusion weights, favoring the semantic side.
const (
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

// SemanticResult is the outcome of a single semantic query.
type SemanticResult struct {
	Query        string                     `json:"query"`
	Results      []vectorstore.SearchResult `json:"results"`
	TotalFound   int                        `json:"total_found"`
	SearchTimeMs float64                    `json:"search_time_ms"`
	Model        string                     `json:"embedding_model"`
}

// HybridResult is the outcome of a fused semantic+lexical query.
type HybridResult struct {
	Query          string        `json:"query"`
	Results        []FusedResult `json:"results"`
	TotalFound     int           `json:"total_found"`
	SearchTimeMs   float64       `json:"search_time_ms"`
	SemanticWeight float64       `json:"semantic_weight"`
	LexicalWeight  float64       `json:"lexical_weight"`
}

// SimilarResult lists points similar to a reference point.
type SimilarResult struct {
	ReferenceID string                     `json:"reference_id"`
	Results     []vectorstore.SearchResult `json:"results"`
	TotalFound  int                        `json:"total_found"`
}

// Analytics bundles collection, cache, and configuration state.
type Analytics struct {
	Collection     *vectorstore.CollectionStats `json:"collection"`
	Cache          embedding.Stats              `json:"cache"`
	LexicalDocs    uint64                       `json:"lexical_docs"`
	SemanticWeight float64                      `json:"semantic_weight"`
	LexicalWeight  float64                      `json:"lexical_weight"`
}

// Engine combines the embedding cache, one vector-store collection, and
// the lexical index into the hybrid retrieval pipeline.
type Engine struct {
	embedder *embedding.Cache
	store    vectorstore.Store
	lexical  *lexical.Index
}

// NewEngine wires the pipeline. All three collaborators are required.
func NewEngine(embedder *embedding.Cache, store vectorstore.Store, lex *lexical.Index) (*Engine, error) {
	if embedder == nil || store == nil || lex == nil {
		return nil, fmt.Errorf("embedder, store, and lexical index are all required")
	}
	return &Engine{embedder: embedder, store: store, lexical: lex}, nil
}

// Index embeds text, stores it as a point, and mirrors it into the lexical
// index. Returns the point id. If the lexical write fails, the vector
// point is rolled back so the two indexes never diverge.
func (e *Engine) Index(ctx context.Context, text string, payload map[string]interface{}) (string, error) {
	if text == "" {
		return "", core.Errorf(core.KindValidation, "search.Index", "text must not be empty")
	}

	// Augment a copy; the caller's map stays untouched.
	stored := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		stored[k] = v
	}
	if _, ok := stored["text"]; !ok {
		stored["text"] = text
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}

	id, err := e.store.Upsert(ctx, "", vec, stored)
	if err != nil {
		return "", err
	}

	title, _ := stored["title"].(string)
	if err := e.lexical.Add(ctx, id, title, text); err != nil {
		e.store.Delete(ctx, id)
		return "", err
	}
	return id, nil
}

// Remove deletes a point from both indexes. Best effort.
func (e *Engine) Remove(ctx context.Context, id string) bool {
	ok := e.store.Delete(ctx, id)
	if err := e.lexical.Delete(ctx, id); err != nil {
		log.Printf("[SEARCH] Lexical delete of %s failed: %v", id, err)
		ok = false
	}
	return ok
}

// SemanticSearch embeds the query and runs a similarity search against the
// vector store. SearchTimeMs is wall clock from entry to result assembly.
func (e *Engine) SemanticSearch(ctx context.Context, query string, opts vectorstore.SearchOptions) (*SemanticResult, error) {
	if opts.Limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "search.SemanticSearch", "limit must be positive, got %d", opts.Limit)
	}
	start := time.Now()

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.store.Search(ctx, vec, opts)
	if err != nil {
		return nil, err
	}

	return &SemanticResult{
		Query:        query,
		Results:      results,
		TotalFound:   len(results),
		SearchTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Model:        e.embedder.Model(),
	}, nil
}

// LexicalSearch runs a keyword query and returns hits with scores
// max-normalized to [0,1]. Payloads are resolved from the vector store so
// lexical results carry the same renderable payload as semantic ones.
func (e *Engine) LexicalSearch(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	hits, err := e.lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	points, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	payloads := make(map[string]map[string]interface{}, len(points))
	for _, p := range points {
		payloads[p.ID] = p.Payload
	}

	results := make([]vectorstore.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = vectorstore.SearchResult{ID: h.ID, Score: h.Score, Payload: payloads[h.ID]}
	}
	return normalizeByMax(results), nil
}

// HybridSearch runs semantic and lexical search, fuses them with the given
// weights, and truncates to limit. Both sides over-fetch 2x the limit so
// fusion does not starve either ranking.
func (e *Engine) HybridSearch(ctx context.Context, query string, limit int, semanticWeight, lexicalWeight float64) (*HybridResult, error) {
	if err := ValidateWeights(semanticWeight, lexicalWeight); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "search.HybridSearch", "limit must be positive, got %d", limit)
	}
	start := time.Now()

	semantic, err := e.SemanticSearch(ctx, query, vectorstore.SearchOptions{Limit: limit * 2})
	if err != nil {
		return nil, err
	}
	lexicalResults, err := e.LexicalSearch(ctx, query, limit*2)
	if err != nil {
		return nil, err
	}

	fused, err := Combine(semantic.Results, lexicalResults, semanticWeight, lexicalWeight)
	if err != nil {
		return nil, err
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	return &HybridResult{
		Query:          query,
		Results:        fused,
		TotalFound:     len(fused),
		SearchTimeMs:   float64(time.Since(start).Microseconds()) / 1000.0,
		SemanticWeight: semanticWeight,
		LexicalWeight:  lexicalWeight,
	}, nil
}

// FindSimilar returns points similar to an existing point, excluding the
// point itself. A missing reference id is a NotFound error.
func (e *Engine) FindSimilar(ctx context.Context, id string, limit int) (*SimilarResult, error) {
	if limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "search.FindSimilar", "limit must be positive, got %d", limit)
	}

	points, err := e.store.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, core.Errorf(core.KindNotFound, "search.FindSimilar", "point %q not found", id)
	}

	text, _ := points[0].Payload["text"].(string)
	if text == "" {
		text, _ = points[0].Payload["content"].(string)
	}
	if text == "" {
		return nil, core.Errorf(core.KindNotFound, "search.FindSimilar", "point %q has no text payload to compare", id)
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// One extra result absorbs the reference point itself.
	results, err := e.store.Search(ctx, vec, vectorstore.SearchOptions{Limit: limit + 1})
	if err != nil {
		return nil, err
	}

	similar := make([]vectorstore.SearchResult, 0, limit)
	for _, r := range results {
		if r.ID == id {
			continue
		}
		similar = append(similar, r)
		if len(similar) == limit {
			break
		}
	}

	return &SimilarResult{
		ReferenceID: id,
		Results:     similar,
		TotalFound:  len(similar),
	}, nil
}

// Analytics reports collection stats, cache counters, and the effective
// fusion defaults.
func (e *Engine) Analytics(ctx context.Context) (*Analytics, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := e.lexical.DocCount()
	if err != nil {
		return nil, core.E(core.KindStore, "search.Analytics", err)
	}

	return &Analytics{
		Collection:     stats,
		Cache:          e.embedder.Stats(),
		LexicalDocs:    docs,
		SemanticWeight: DefaultSemanticWeight,
		LexicalWeight:  DefaultLexicalWeight,
	}, nil
}
