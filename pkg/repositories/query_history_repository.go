package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/queryforge/queryforge-engine/pkg/database"
)

// QueryHistoryEntry records one completed optimization run.
type QueryHistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Question     string    `json:"question"`
	FinalSQL     string    `json:"final_sql"`
	Success      bool      `json:"success"`
	Iterations   int       `json:"iterations"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueryHistoryRepository persists per-connection query runs.
type QueryHistoryRepository interface {
	Record(ctx context.Context, entry *QueryHistoryEntry) error
	ListByConnection(ctx context.Context, connectionID string, limit int) ([]*QueryHistoryEntry, error)
}

type queryHistoryRepository struct {
	db *database.DB
}

// NewQueryHistoryRepository creates a new QueryHistoryRepository.
func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

var _ QueryHistoryRepository = (*queryHistoryRepository)(nil)

func (r *queryHistoryRepository) Record(ctx context.Context, entry *QueryHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	_, err := r.db.Exec(ctx, `
		INSERT INTO engine_query_history (id, connection_id, question, final_sql, success, iterations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.ConnectionID, entry.Question, entry.FinalSQL,
		entry.Success, entry.Iterations, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record query history: %w", err)
	}
	return nil
}

func (r *queryHistoryRepository) ListByConnection(ctx context.Context, connectionID string, limit int) ([]*QueryHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, connection_id, question, final_sql, success, iterations, created_at
		FROM engine_query_history
		WHERE connection_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		connectionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list query history: %w", err)
	}
	defer rows.Close()

	var entries []*QueryHistoryEntry
	for rows.Next() {
		var e QueryHistoryEntry
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Question, &e.FinalSQL,
			&e.Success, &e.Iterations, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query history: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query history: %w", err)
	}

	return entries, nil
}
