// Package lexical provides the keyword side of hybrid search: a bleve
// full-text index over the raw text of stored points.
//
// This is a real inverted index, not a reuse of the vector store's payload
// filters. The two have materially different recall: the index matches and
// ranks by term statistics, while a payload filter can only do literal
// containment.
package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
)

// Result is one keyword hit. Scores are bleve's tf-idf style scores and
// are unbounded; callers normalize before fusing with semantic scores.
type Result struct {
	ID    string
	Score float64
}

// document is the indexed shape of a point.
type document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Index is a bleve-backed keyword index keyed by point id.
type Index struct {
	index bleve.Index
}

// New creates or opens an index at path. An empty path keeps the index
// in memory, matching the embedded chromem store's lifecycle.
func New(path string) (*Index, error) {
	mapping := buildMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open index at %s: %w", path, err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("create index at %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so queries
	// match the exact words stored.
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textField)
	docMapping.AddFieldMappingsAt("title", textField)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// Add indexes (or reindexes) the text of a point.
func (x *Index) Add(ctx context.Context, id, title, content string) error {
	if err := x.index.Index(id, document{Title: title, Content: content}); err != nil {
		return core.Errorf(core.KindStore, "lexical.Add", "index %s: %w", id, err)
	}
	return nil
}

// Search runs a match query over title and content, returning up to limit
// hits by descending score. No matches is an empty slice, not an error.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, core.Errorf(core.KindValidation, "lexical.Search", "limit must be positive, got %d", limit)
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit

	res, err := x.index.Search(req)
	if err != nil {
		return nil, core.Errorf(core.KindStore, "lexical.Search", "search: %w", err)
	}

	out := make([]Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a point's text from the index.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.index.Delete(id); err != nil {
		return core.Errorf(core.KindStore, "lexical.Delete", "delete %s: %w", id, err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}
