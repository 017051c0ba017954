package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/vector"
)

// SchemaTrainer maintains the trained schema and its retrieval index: store
// table metadata, save one embedding per table, and tear both down together.
type SchemaTrainer interface {
	// TrainConnection replaces the stored schema and reindexes every table.
	TrainConnection(ctx context.Context, schema *models.ConnectionSchema) error
	// TrainTable upserts one table into the stored schema and its embedding.
	TrainTable(ctx context.Context, connectionID string, table models.TableInfo) error
	// DropTable removes one table from the stored schema and its embedding.
	DropTable(ctx context.Context, connectionID, tableName string) error
	// ResetConnection deletes the stored schema and the whole embedding
	// collection for a connection.
	ResetConnection(ctx context.Context, connectionID string) error
}

type schemaTrainer struct {
	schemas repositories.SchemaRepository
	store   vector.Store
	logger  *zap.Logger
}

// NewSchemaTrainer creates a new SchemaTrainer.
func NewSchemaTrainer(schemas repositories.SchemaRepository, store vector.Store, logger *zap.Logger) SchemaTrainer {
	return &schemaTrainer{
		schemas: schemas,
		store:   store,
		logger:  logger.Named("schema-trainer"),
	}
}

var _ SchemaTrainer = (*schemaTrainer)(nil)

func (s *schemaTrainer) TrainConnection(ctx context.Context, schema *models.ConnectionSchema) error {
	if err := s.schemas.Upsert(ctx, schema); err != nil {
		return err
	}

	// Drop the whole collection first so removed tables do not linger in the
	// index.
	if err := s.store.DeleteCollection(ctx, schema.ConnectionID); err != nil {
		return fmt.Errorf("clear embedding collection: %w", err)
	}

	for _, table := range schema.Tables {
		if err := s.indexTable(ctx, schema.ConnectionID, table); err != nil {
			return err
		}
	}

	s.logger.Info("connection trained",
		zap.String("connection_id", schema.ConnectionID),
		zap.Int("tables", len(schema.Tables)))
	return nil
}

func (s *schemaTrainer) TrainTable(ctx context.Context, connectionID string, table models.TableInfo) error {
	schema, err := s.schemas.GetByConnectionID(ctx, connectionID)
	switch {
	case errors.Is(err, apperrors.ErrNoSchema):
		schema = &models.ConnectionSchema{ConnectionID: connectionID}
	case err != nil:
		// Anything else is a read failure; overwriting the stored schema
		// here would drop previously trained tables.
		return fmt.Errorf("load schema for %s: %w", connectionID, err)
	}

	replaced := false
	for i := range schema.Tables {
		if strings.EqualFold(schema.Tables[i].TableName, table.TableName) {
			schema.Tables[i] = table
			replaced = true
			break
		}
	}
	if !replaced {
		schema.Tables = append(schema.Tables, table)
	}

	if err := s.schemas.Upsert(ctx, schema); err != nil {
		return err
	}
	return s.indexTable(ctx, connectionID, table)
}

func (s *schemaTrainer) DropTable(ctx context.Context, connectionID, tableName string) error {
	schema, err := s.schemas.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return err
	}

	kept := schema.Tables[:0]
	for _, t := range schema.Tables {
		if !strings.EqualFold(t.TableName, tableName) {
			kept = append(kept, t)
		}
	}
	schema.Tables = kept

	if err := s.schemas.Upsert(ctx, schema); err != nil {
		return err
	}

	embedding := models.SchemaEmbedding{ConnectionID: connectionID, TableName: tableName}
	if err := s.store.Delete(ctx, connectionID, embedding.EmbeddingID()); err != nil {
		return fmt.Errorf("delete embedding for %s: %w", tableName, err)
	}
	return nil
}

func (s *schemaTrainer) ResetConnection(ctx context.Context, connectionID string) error {
	if err := s.schemas.Delete(ctx, connectionID); err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, connectionID); err != nil {
		return fmt.Errorf("delete embedding collection: %w", err)
	}

	s.logger.Info("connection reset", zap.String("connection_id", connectionID))
	return nil
}

// indexTable saves the retrieval text for one table, replacing any stale
// embedding under the same id first.
func (s *schemaTrainer) indexTable(ctx context.Context, connectionID string, table models.TableInfo) error {
	embedding := models.SchemaEmbedding{
		ConnectionID: connectionID,
		TableName:    table.TableName,
		Description:  BuildTableDescription(table),
	}

	if err := s.store.Delete(ctx, connectionID, embedding.EmbeddingID()); err != nil {
		return fmt.Errorf("delete stale embedding for %s: %w", table.TableName, err)
	}
	if err := s.store.Save(ctx, connectionID, embedding.EmbeddingID(), embedding.Description); err != nil {
		return fmt.Errorf("save embedding for %s: %w", table.TableName, err)
	}
	return nil
}

// BuildTableDescription renders the retrieval text for one table: its
// description, enabled columns, and foreign-key relationships.
func BuildTableDescription(table models.TableInfo) string {
	var b strings.Builder

	b.WriteString("Table ")
	b.WriteString(table.TableName)
	if table.Description != "" {
		b.WriteString(": ")
		b.WriteString(table.Description)
	}
	b.WriteString("\n")

	for _, col := range table.EnabledColumns() {
		b.WriteString("Column ")
		b.WriteString(col.ColumnName)
		b.WriteString(" (")
		b.WriteString(col.DataType)
		b.WriteString(")")
		if col.Description != "" {
			b.WriteString(": ")
			b.WriteString(col.Description)
		}
		b.WriteString("\n")
	}

	for _, fk := range table.ForeignKeys {
		b.WriteString(fmt.Sprintf("References %s via %s -> %s\n",
			fk.ReferencedTable, fk.SourceColumn, fk.ReferencedColumn))
	}

	return strings.TrimRight(b.String(), "\n")
}
