package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/config"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/vector"
)

// SchemaLinker selects the subset of a connection's schema relevant to a
// question: vector retrieval with a descending threshold, then foreign-key
// expansion, falling back to the full schema when nothing matches.
type SchemaLinker interface {
	GetRelevantSchema(ctx context.Context, connectionID, question string) (*models.RelevantSchema, error)
}

type schemaLinker struct {
	schemas repositories.SchemaRepository
	store   vector.Store
	cfg     config.RetrievalConfig
	logger  *zap.Logger
}

// NewSchemaLinker creates a new SchemaLinker.
func NewSchemaLinker(schemas repositories.SchemaRepository, store vector.Store, cfg config.RetrievalConfig, logger *zap.Logger) SchemaLinker {
	return &schemaLinker{
		schemas: schemas,
		store:   store,
		cfg:     cfg,
		logger:  logger.Named("schema-linker"),
	}
}

var _ SchemaLinker = (*schemaLinker)(nil)

func (s *schemaLinker) GetRelevantSchema(ctx context.Context, connectionID, question string) (*models.RelevantSchema, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	schema, err := s.schemas.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if len(schema.Tables) == 0 {
		return nil, fmt.Errorf("schema for connection %s has no tables: %w", connectionID, apperrors.ErrNoSchema)
	}

	matched, details, err := s.retrieveTables(ctx, connectionID, question, schema)
	if err != nil {
		return nil, err
	}

	if len(matched) < s.cfg.MinTablesRequired {
		s.logger.Info("no tables matched at any threshold, using full schema",
			zap.String("connection_id", connectionID),
			zap.Int("table_count", len(schema.Tables)))
		return &models.RelevantSchema{
			Tables:       schema.Tables,
			UsedFallback: true,
		}, nil
	}

	related := s.inferRelatedTables(schema, tableNames(matched))
	for _, name := range related {
		if table, ok := schema.FindTable(name); ok {
			matched = append(matched, *table)
		}
	}

	s.logger.Debug("schema linked",
		zap.String("connection_id", connectionID),
		zap.Int("matched", len(details)),
		zap.Int("related", len(related)))

	return &models.RelevantSchema{
		Tables:       matched,
		MatchDetails: details,
	}, nil
}

// retrieveTables probes the vector store at each threshold of the descent,
// stopping at the first threshold that yields enough resolved tables.
func (s *schemaLinker) retrieveTables(ctx context.Context, connectionID, question string, schema *models.ConnectionSchema) ([]models.TableInfo, []models.SchemaMatch, error) {
	for _, threshold := range s.descentThresholds() {
		hits, err := s.store.Search(ctx, connectionID, question, s.cfg.MaxTables, threshold)
		if err != nil {
			return nil, nil, fmt.Errorf("schema search at threshold %.2f: %w", threshold, err)
		}

		var (
			tables  []models.TableInfo
			details []models.SchemaMatch
			seen    = map[string]bool{}
		)
		for _, hit := range hits {
			_, tableName, ok := models.ParseEmbeddingID(hit.ID)
			if !ok {
				continue
			}
			table, found := schema.FindTable(tableName)
			if !found || seen[strings.ToLower(table.TableName)] {
				continue
			}
			seen[strings.ToLower(table.TableName)] = true
			tables = append(tables, *table)
			details = append(details, models.SchemaMatch{
				TableName: table.TableName,
				Score:     hit.Score,
				Threshold: threshold,
			})
		}

		if len(tables) >= s.cfg.MinTablesRequired {
			return tables, details, nil
		}
	}

	return nil, nil, nil
}

// descentThresholds returns the probe sequence from the starting threshold
// down to the floor, inclusive. Guards against float drift at the boundary.
func (s *schemaLinker) descentThresholds() []float64 {
	const eps = 1e-9

	var thresholds []float64
	for t := s.cfg.RelevanceThreshold; t >= s.cfg.ThresholdFloor-eps; t -= s.cfg.ThresholdStep {
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// inferRelatedTables expands the matched set along foreign keys in three
// passes: outbound references, single-key child tables referencing the
// expanded set, then junction tables with at least two foreign keys into the
// expanded set. Additions are capped by MaxRelatedTables and returned in
// discovery order.
func (s *schemaLinker) inferRelatedTables(schema *models.ConnectionSchema, matched []string) []string {
	included := map[string]bool{}
	for _, name := range matched {
		included[strings.ToLower(name)] = true
	}

	var added []string
	add := func(name string) bool {
		if len(added) >= s.cfg.MaxRelatedTables {
			return false
		}
		key := strings.ToLower(name)
		if included[key] {
			return true
		}
		if _, ok := schema.FindTable(name); !ok {
			return true
		}
		included[key] = true
		added = append(added, name)
		return true
	}

	// Pass 1: tables referenced by the matched tables' foreign keys.
	for _, name := range matched {
		table, ok := schema.FindTable(name)
		if !ok {
			continue
		}
		for _, fk := range table.ForeignKeys {
			if !add(fk.ReferencedTable) {
				return added
			}
		}
	}

	// Pass 2: single-key child tables referencing the expanded set. Tables
	// with several foreign keys wait for the junction pass.
	for _, table := range schema.Tables {
		if included[strings.ToLower(table.TableName)] || len(table.ForeignKeys) != 1 {
			continue
		}
		if included[strings.ToLower(table.ForeignKeys[0].ReferencedTable)] {
			if !add(table.TableName) {
				return added
			}
		}
	}

	// Pass 3: junction tables linking at least two tables in the expanded set.
	for _, table := range schema.Tables {
		if included[strings.ToLower(table.TableName)] || len(table.ForeignKeys) < 2 {
			continue
		}
		links := 0
		for _, fk := range table.ForeignKeys {
			if included[strings.ToLower(fk.ReferencedTable)] {
				links++
			}
		}
		if links >= 2 {
			if !add(table.TableName) {
				return added
			}
		}
	}

	return added
}

func tableNames(tables []models.TableInfo) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.TableName
	}
	return names
}
