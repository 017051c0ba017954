package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TableInfo represents one trained table in a connection's schema.
// Identity is the table name, case-insensitive, within a connection.
type TableInfo struct {
	TableName   string           `json:"table_name"`
	Description string           `json:"description,omitempty"`
	Columns     []ColumnInfo     `json:"columns"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys,omitempty"`
}

// ColumnInfo represents a single column of a trained table.
// Disabled columns are excluded from retrieval text and regenerated descriptions.
type ColumnInfo struct {
	ColumnName   string `json:"column_name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	Description  string `json:"description,omitempty"`
	IsEnabled    bool   `json:"is_enabled"`
}

// ForeignKeyInfo represents a foreign key constraint on a table.
type ForeignKeyInfo struct {
	ConstraintName   string `json:"constraint_name"`
	SourceColumn     string `json:"source_column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	Relationship     string `json:"relationship,omitempty"`
}

// ConnectionSchema is the full trained schema for one connection, stored and
// interchanged as a plain JSON table list.
type ConnectionSchema struct {
	ConnectionID string      `json:"connection_id"`
	Tables       []TableInfo `json:"tables"`
}

// FindTable returns the table with the given name, case-insensitive.
func (s *ConnectionSchema) FindTable(name string) (*TableInfo, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].TableName, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns all table names in schema order.
func (s *ConnectionSchema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.TableName
	}
	return names
}

// EnabledColumns returns the columns that participate in retrieval text.
func (t *TableInfo) EnabledColumns() []ColumnInfo {
	var cols []ColumnInfo
	for _, c := range t.Columns {
		if c.IsEnabled {
			cols = append(cols, c)
		}
	}
	return cols
}

// PrimaryKeyColumn returns the first primary key column name, if any.
func (t *TableInfo) PrimaryKeyColumn() (string, bool) {
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			return c.ColumnName, true
		}
	}
	return "", false
}

// ParseConnectionSchema deserializes a stored table list.
func ParseConnectionSchema(data []byte) (*ConnectionSchema, error) {
	var schema ConnectionSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse connection schema: %w", err)
	}
	return &schema, nil
}

// SchemaEmbedding is one retrievable unit (table granularity) saved to the
// vector store. The ID encodes the back-reference to (connection, table).
type SchemaEmbedding struct {
	ConnectionID string `json:"connection_id"`
	TableName    string `json:"table_name"`
	Description  string `json:"description"`
}

// EmbeddingID returns the vector-store item id for this embedding.
func (e *SchemaEmbedding) EmbeddingID() string {
	return e.ConnectionID + ":" + strings.ToLower(e.TableName)
}

// ParseEmbeddingID splits a vector-store item id back into its connection id
// and table name. Returns false for ids that do not follow the format.
func ParseEmbeddingID(id string) (connectionID, tableName string, ok bool) {
	idx := strings.LastIndex(id, ":")
	if idx <= 0 || idx == len(id)-1 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}

// RelevantSchema is the result of schema linking for one question.
type RelevantSchema struct {
	Tables       []TableInfo   `json:"tables"`
	MatchDetails []SchemaMatch `json:"match_details"`
	UsedFallback bool          `json:"used_fallback"`
}

// SchemaMatch records one accepted vector-search hit.
type SchemaMatch struct {
	TableName string  `json:"table_name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}
