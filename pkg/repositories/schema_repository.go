// Package repositories provides pgx-backed data access for the engine's
// metadata store.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/database"
	"github.com/queryforge/queryforge-engine/pkg/models"
)

// SchemaRepository stores the serialized table list per connection.
// The blob is re-read and re-parsed per operation; callers must not assume
// a cached schema survives a concurrent update.
type SchemaRepository interface {
	GetByConnectionID(ctx context.Context, connectionID string) (*models.ConnectionSchema, error)
	Upsert(ctx context.Context, schema *models.ConnectionSchema) error
	Delete(ctx context.Context, connectionID string) error
}

type schemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

var _ SchemaRepository = (*schemaRepository)(nil)

func (r *schemaRepository) GetByConnectionID(ctx context.Context, connectionID string) (*models.ConnectionSchema, error) {
	var tablesJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT tables FROM engine_connection_schemas WHERE connection_id = $1`,
		connectionID,
	).Scan(&tablesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schema for connection %s: %w", connectionID, apperrors.ErrNoSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	var tables []models.TableInfo
	if err := json.Unmarshal(tablesJSON, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse stored schema: %w", err)
	}

	return &models.ConnectionSchema{
		ConnectionID: connectionID,
		Tables:       tables,
	}, nil
}

func (r *schemaRepository) Upsert(ctx context.Context, schema *models.ConnectionSchema) error {
	tablesJSON, err := json.Marshal(schema.Tables)
	if err != nil {
		return fmt.Errorf("failed to marshal tables: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO engine_connection_schemas (connection_id, tables, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id)
		DO UPDATE SET tables = EXCLUDED.tables, updated_at = EXCLUDED.updated_at`,
		schema.ConnectionID, tablesJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schema: %w", err)
	}

	return nil
}

func (r *schemaRepository) Delete(ctx context.Context, connectionID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM engine_connection_schemas WHERE connection_id = $1`,
		connectionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	return nil
}
