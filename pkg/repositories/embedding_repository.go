package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/queryforge/queryforge-engine/pkg/database"
)

// EmbeddingRecord is one stored embedding row.
type EmbeddingRecord struct {
	ItemID  string
	Content string
	Vector  []float32
}

// EmbeddingRepository stores embedding vectors per collection.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, collection, itemID, content string, vector []float32) error
	ListByCollection(ctx context.Context, collection string) ([]EmbeddingRecord, error)
	Delete(ctx context.Context, collection, itemID string) error
	DeleteCollection(ctx context.Context, collection string) error
}

type embeddingRepository struct {
	db *database.DB
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(db *database.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

var _ EmbeddingRepository = (*embeddingRepository)(nil)

func (r *embeddingRepository) Upsert(ctx context.Context, collection, itemID, content string, vector []float32) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO engine_schema_embeddings (collection, item_id, content, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, item_id)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at`,
		collection, itemID, content, vector, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (r *embeddingRepository) ListByCollection(ctx context.Context, collection string) ([]EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT item_id, content, embedding FROM engine_schema_embeddings WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var records []EmbeddingRecord
	for rows.Next() {
		var rec EmbeddingRecord
		if err := rows.Scan(&rec.ItemID, &rec.Content, &rec.Vector); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}

	return records, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, collection, itemID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM engine_schema_embeddings WHERE collection = $1 AND item_id = $2`,
		collection, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

func (r *embeddingRepository) DeleteCollection(ctx context.Context, collection string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM engine_schema_embeddings WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}
