package models

// Table type tags assigned by the schema graph builder.
const (
	TableTypeLog       = "log_table"
	TableTypeConfig    = "config_table"
	TableTypeJunction  = "junction_table"
	TableTypeFact      = "fact_table"
	TableTypeDimension = "dimension_table"
)

// Column semantic tags assigned by the schema graph builder.
const (
	ColumnTagPrimaryKey          = "primary_key"
	ColumnTagForeignKeyCandidate = "foreign_key_candidate"
	ColumnTagNameField           = "name_field"
	ColumnTagTemporalField       = "temporal_field"
	ColumnTagMonetaryField       = "monetary_field"
	ColumnTagNumericField        = "numeric_field"
	ColumnTagGeneralField        = "general_field"
)

// Graph node kinds.
const (
	NodeKindTable  = "table"
	NodeKindColumn = "column"
)

// Graph edge kinds.
const (
	EdgeKindContains   = "contains"
	EdgeKindForeignKey = "foreign_key"
)

// SchemaGraph is a typed graph over one connection's tables and columns,
// used for diagnostics and visualization.
type SchemaGraph struct {
	ConnectionID string            `json:"connection_id"`
	Nodes        []SchemaGraphNode `json:"nodes"`
	Edges        []SchemaGraphEdge `json:"edges"`
}

// SchemaGraphNode is a table or column node with derived features.
type SchemaGraphNode struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Label    string         `json:"label"`
	TypeTag  string         `json:"type_tag"`
	Features map[string]any `json:"features,omitempty"`
}

// SchemaGraphEdge connects a table to its columns or to a referenced table.
type SchemaGraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}
