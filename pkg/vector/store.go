// Package vector provides the similarity-search collaborator used for schema
// retrieval: save table descriptions, search them by question.
package vector

import (
	"context"
	"math"
	"sort"
)

// Match is one search hit, ordered by descending relevance.
type Match struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store is the vector similarity index. Search results are finite, ordered
// by descending relevance, and filtered by minScore.
type Store interface {
	Save(ctx context.Context, collection, id, text string) error
	Search(ctx context.Context, collection, query string, limit int, minScore float64) ([]Match, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteCollection(ctx context.Context, collection string) error
}

// CosineSimilarity computes similarity between two vectors.
// Returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankMatches filters by minScore, orders by descending score, and truncates
// to limit. Shared by store implementations.
func rankMatches(matches []Match, limit int, minScore float64) []Match {
	var kept []Match
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
