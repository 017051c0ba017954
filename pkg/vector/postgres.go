package vector

import (
	"context"
	"fmt"

	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/retry"
)

// PostgresStore persists embeddings through the embedding repository and
// ranks candidates by cosine similarity in process. Collections here are
// small (one row per trained table), so loading a collection per search is
// cheaper than maintaining an index extension.
type PostgresStore struct {
	embedder llm.EmbeddingClient
	repo     repositories.EmbeddingRepository
	retryCfg *retry.Config
}

// NewPostgresStore creates a Store backed by the embeddings table.
func NewPostgresStore(embedder llm.EmbeddingClient, repo repositories.EmbeddingRepository) *PostgresStore {
	return &PostgresStore{
		embedder: embedder,
		repo:     repo,
		retryCfg: retry.DefaultConfig(),
	}
}

var _ Store = (*PostgresStore)(nil)

// Save embeds text and upserts it under (collection, id).
func (s *PostgresStore) Save(ctx context.Context, collection, id, text string) error {
	vec, err := retry.DoWithResult(ctx, s.retryCfg, func() ([]float32, error) {
		return s.embedder.CreateEmbedding(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}

	return s.repo.Upsert(ctx, collection, id, text, vec)
}

// Search embeds the query and ranks the collection's rows by cosine
// similarity.
func (s *PostgresStore) Search(ctx context.Context, collection, query string, limit int, minScore float64) ([]Match, error) {
	queryVec, err := retry.DoWithResult(ctx, s.retryCfg, func() ([]float32, error) {
		return s.embedder.CreateEmbedding(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := s.repo.ListByCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, Match{
			ID:    rec.ItemID,
			Text:  rec.Content,
			Score: CosineSimilarity(queryVec, rec.Vector),
		})
	}

	return rankMatches(matches, limit, minScore), nil
}

// Delete removes one entry.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.repo.Delete(ctx, collection, id)
}

// DeleteCollection removes a whole collection.
func (s *PostgresStore) DeleteCollection(ctx context.Context, collection string) error {
	return s.repo.DeleteCollection(ctx, collection)
}
