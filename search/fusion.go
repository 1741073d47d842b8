package search

import (
	"math"
	"sort"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// weightTolerance is how far the weight sum may deviate from 1.0.
const weightTolerance = 0.01

// FusedResult is one entry of a hybrid ranking: the weighted combination
// of a semantic and a lexical score for the same point.
type FusedResult struct {
	ID            string                 `json:"id"`
	CombinedScore float64                `json:"combined_score"`
	SemanticScore float64                `json:"semantic_score"`
	LexicalScore  float64                `json:"lexical_score"`
	Payload       map[string]interface{} `json:"payload"`
}

// ValidateWeights rejects weight pairs whose sum deviates from 1.0 by more
// than the tolerance. Called by every entry point taking weights, before
// any external call is made.
func ValidateWeights(semanticWeight, lexicalWeight float64) error {
	if math.Abs(semanticWeight+lexicalWeight-1.0) > weightTolerance {
		return core.Errorf(core.KindValidation, "search.ValidateWeights",
			"semantic and lexical weights must sum to 1.0, got %g + %g = %g",
			semanticWeight, lexicalWeight, semanticWeight+lexicalWeight)
	}
	return nil
}

// Combine fuses a semantic and a lexical result set into one ranking.
//
// The output covers the union of ids from both sets. A point absent from
// one set scores 0 on that side. The payload comes from the semantic set
// when present there, falling back to the lexical set. Results are sorted
// by descending combined score with ascending id as the tie-break, so the
// ranking is deterministic.
func Combine(semantic, lexical []vectorstore.SearchResult, semanticWeight, lexicalWeight float64) ([]FusedResult, error) {
	if err := ValidateWeights(semanticWeight, lexicalWeight); err != nil {
		return nil, err
	}

	fused := make(map[string]*FusedResult, len(semantic)+len(lexical))
	for _, r := range semantic {
		fused[r.ID] = &FusedResult{
			ID:            r.ID,
			SemanticScore: r.Score,
			Payload:       r.Payload,
		}
	}
	for _, r := range lexical {
		if entry, ok := fused[r.ID]; ok {
			entry.LexicalScore = r.Score
			continue
		}
		fused[r.ID] = &FusedResult{
			ID:           r.ID,
			LexicalScore: r.Score,
			Payload:      r.Payload,
		}
	}

	results := make([]FusedResult, 0, len(fused))
	for _, entry := range fused {
		entry.CombinedScore = semanticWeight*entry.SemanticScore + lexicalWeight*entry.LexicalScore
		results = append(results, *entry)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// normalizeByMax scales lexical scores into [0,1] by the maximum score, so
// they are comparable with cosine similarities before fusion.
func normalizeByMax(results []vectorstore.SearchResult) []vectorstore.SearchResult {
	if len(results) == 0 {
		return results
	}
	max := results[0].Score
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		return results
	}
	out := make([]vectorstore.SearchResult, len(results))
	for i, r := range results {
		r.Score = r.Score / max
		out[i] = r
	}
	return out
}
