package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// BatchResult is one query's result set within a batch. QueryIndex ties it
// back to the position of its query in the input slice.
type BatchResult struct {
	Query      string                     `json:"query"`
	Results    []vectorstore.SearchResult `json:"results"`
	TotalFound int                        `json:"total_found"`
	QueryIndex int                        `json:"query_index"`
}

// BatchSearch embeds all queries in one batched provider pass, then fans
// the per-query vector searches out concurrently. The returned slice is
// index-aligned with the input: result i belongs to query i regardless of
// which search finished first. Any single failure fails the whole batch.
func (e *Engine) BatchSearch(ctx context.Context, queries []string, limit int) ([]BatchResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "search.BatchSearch", "limit must be positive, got %d", limit)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, queries)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			hits, err := e.store.Search(ctx, vectors[i], vectorstore.SearchOptions{Limit: limit})
			if err != nil {
				return err
			}
			results[i] = BatchResult{
				Query:      query,
				Results:    hits,
				TotalFound: len(hits),
				QueryIndex: i,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
