// Package datasource provides SQL execution against customer databases.
package datasource

import (
	"context"
)

// MaxResultRows is the hard cap on rows scanned from a query. One past the
// result validator's default ceiling, so oversized results remain detectable
// without letting an unbounded query exhaust memory.
const MaxResultRows = 10001

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RowCount returns the number of returned rows.
func (r *QueryResult) RowCount() int {
	return len(r.Rows)
}

// ExecutionError is a database-reported failure, carried as data into the
// repair loop. Infrastructure faults (no connection configured, context
// cancelled) are returned as plain errors instead.
type ExecutionError struct {
	Message string
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return e.Message
}

// Executor runs SQL against the datasource behind a connection id.
// Database-reported failures come back as *ExecutionError; anything else is
// an infrastructure fault.
type Executor interface {
	ExecuteQuery(ctx context.Context, connectionID, sqlQuery string) (*QueryResult, error)

	// Close releases all held connections.
	Close() error
}

// DSNResolver maps a connection id to its data source name. Connection
// management and credential storage are owned by the caller.
type DSNResolver func(connectionID string) (string, error)
