package services

import (
	"context"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
)

// SchemaGraphBuilder derives a typed graph over a connection's tables and
// columns, tagging each node with a semantic role.
type SchemaGraphBuilder interface {
	BuildSchemaGraph(ctx context.Context, connectionID string) (*models.SchemaGraph, error)
}

type schemaGraphBuilder struct {
	schemas repositories.SchemaRepository
	logger  *zap.Logger
}

// NewSchemaGraphBuilder creates a new SchemaGraphBuilder.
func NewSchemaGraphBuilder(schemas repositories.SchemaRepository, logger *zap.Logger) SchemaGraphBuilder {
	return &schemaGraphBuilder{
		schemas: schemas,
		logger:  logger.Named("schema-graph"),
	}
}

var _ SchemaGraphBuilder = (*schemaGraphBuilder)(nil)

func (b *schemaGraphBuilder) BuildSchemaGraph(ctx context.Context, connectionID string) (*models.SchemaGraph, error) {
	schema, err := b.schemas.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	graph := &models.SchemaGraph{ConnectionID: connectionID}
	tableNames := map[string]bool{}
	for _, t := range schema.Tables {
		tableNames[strings.ToLower(t.TableName)] = true
	}

	for _, table := range schema.Tables {
		tableID := strings.ToLower(table.TableName)
		graph.Nodes = append(graph.Nodes, models.SchemaGraphNode{
			ID:      tableID,
			Kind:    models.NodeKindTable,
			Label:   table.TableName,
			TypeTag: classifyTable(&table),
			Features: map[string]any{
				"column_count":      len(table.Columns),
				"foreign_key_count": len(table.ForeignKeys),
			},
		})

		for _, col := range table.Columns {
			colID := tableID + "." + strings.ToLower(col.ColumnName)
			node := models.SchemaGraphNode{
				ID:      colID,
				Kind:    models.NodeKindColumn,
				Label:   col.ColumnName,
				TypeTag: classifyColumn(&col),
			}
			if node.TypeTag == models.ColumnTagForeignKeyCandidate {
				if target, ok := candidateTarget(col.ColumnName, tableNames); ok {
					node.Features = map[string]any{"references_table": target}
				}
			}
			graph.Nodes = append(graph.Nodes, node)
			graph.Edges = append(graph.Edges, models.SchemaGraphEdge{
				From: tableID,
				To:   colID,
				Kind: models.EdgeKindContains,
			})
		}

		for _, fk := range table.ForeignKeys {
			graph.Edges = append(graph.Edges, models.SchemaGraphEdge{
				From: tableID,
				To:   strings.ToLower(fk.ReferencedTable),
				Kind: models.EdgeKindForeignKey,
			})
		}
	}

	b.logger.Debug("schema graph built",
		zap.String("connection_id", connectionID),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)))

	return graph, nil
}

// classifyTable assigns the table type tag. Name cues win over shape cues.
func classifyTable(table *models.TableInfo) string {
	name := strings.ToLower(table.TableName)
	switch {
	case strings.Contains(name, "log") || strings.Contains(name, "audit"):
		return models.TableTypeLog
	case strings.Contains(name, "config") || strings.Contains(name, "setting"):
		return models.TableTypeConfig
	case len(table.ForeignKeys) >= 2 && len(table.Columns) <= 5:
		return models.TableTypeJunction
	case len(table.Columns) > 20:
		return models.TableTypeFact
	default:
		return models.TableTypeDimension
	}
}

// classifyColumn assigns a semantic tag from the column name and declared
// type. The first matching rule wins.
func classifyColumn(col *models.ColumnInfo) string {
	name := strings.ToLower(col.ColumnName)
	dataType := strings.ToLower(col.DataType)

	switch {
	case col.IsPrimaryKey:
		return models.ColumnTagPrimaryKey
	case strings.HasSuffix(name, "_id"):
		return models.ColumnTagForeignKeyCandidate
	case strings.Contains(name, "name") || strings.Contains(name, "title") || strings.Contains(name, "label"):
		return models.ColumnTagNameField
	case isTemporalType(dataType) || strings.HasSuffix(name, "_at") || strings.Contains(name, "date") || strings.Contains(name, "time"):
		return models.ColumnTagTemporalField
	case isMonetaryName(name) || strings.Contains(dataType, "money"):
		return models.ColumnTagMonetaryField
	case isNumericType(dataType):
		return models.ColumnTagNumericField
	default:
		return models.ColumnTagGeneralField
	}
}

// candidateTarget guesses the table a foreign-key-candidate column points at
// by pluralizing the column stem: customer_id -> customers.
func candidateTarget(columnName string, tableNames map[string]bool) (string, bool) {
	stem := strings.TrimSuffix(strings.ToLower(columnName), "_id")
	if stem == "" {
		return "", false
	}

	plural := inflection.Plural(stem)
	if tableNames[plural] {
		return plural, true
	}
	if tableNames[stem] {
		return stem, true
	}
	return "", false
}

func isTemporalType(dataType string) bool {
	return strings.Contains(dataType, "date") ||
		strings.Contains(dataType, "time") ||
		strings.Contains(dataType, "interval")
}

func isMonetaryName(name string) bool {
	for _, cue := range []string{"price", "amount", "cost", "fee", "salary", "revenue", "total", "balance"} {
		if strings.Contains(name, cue) {
			return true
		}
	}
	return false
}

func isNumericType(dataType string) bool {
	for _, t := range []string{"int", "numeric", "decimal", "float", "double", "real", "serial"} {
		if strings.Contains(dataType, t) {
			return true
		}
	}
	return false
}
