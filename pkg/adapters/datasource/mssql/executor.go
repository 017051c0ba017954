// Package mssql executes generated SQL against SQL Server datasources.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	mssqldb "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/logging"
)

// Executor runs queries against SQL Server, caching one handle per
// connection id.
type Executor struct {
	resolve datasource.DSNResolver
	logger  *zap.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewExecutor creates a SQL Server executor.
func NewExecutor(resolve datasource.DSNResolver, logger *zap.Logger) *Executor {
	return &Executor{
		resolve: resolve,
		logger:  logger.Named("mssql-executor"),
		dbs:     make(map[string]*sql.DB),
	}
}

var _ datasource.Executor = (*Executor)(nil)

// ExecuteQuery runs a statement and scans up to MaxResultRows rows.
// Database-reported failures are returned as *datasource.ExecutionError.
func (e *Executor) ExecuteQuery(ctx context.Context, connectionID, sqlQuery string) (*datasource.QueryResult, error) {
	db, err := e.handle(connectionID)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing query",
		zap.String("connection_id", connectionID),
		zap.String("sql", logging.SanitizeSQL(sqlQuery)))

	rows, err := db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, wrapDatabaseError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, wrapDatabaseError(err)
	}

	result := &datasource.QueryResult{Columns: columns}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= datasource.MaxResultRows {
			break
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, wrapDatabaseError(err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDatabaseError(err)
	}

	return result, nil
}

// Close releases all cached handles.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, db := range e.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.dbs = make(map[string]*sql.DB)
	return firstErr
}

// handle returns the cached DB for a connection, creating it on first use.
func (e *Executor) handle(connectionID string) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.dbs[connectionID]; ok {
		return db, nil
	}

	dsn, err := e.resolve(connectionID)
	if err != nil {
		return nil, fmt.Errorf("resolve connection %s: %w", connectionID, err)
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection for %s: %w", connectionID, err)
	}

	e.dbs[connectionID] = db
	return db, nil
}

// wrapDatabaseError turns server-reported errors into ExecutionError data for
// the repair loop; everything else stays an infrastructure fault.
func wrapDatabaseError(err error) error {
	var srvErr mssqldb.Error
	if errors.As(err, &srvErr) {
		return &datasource.ExecutionError{Message: srvErr.Message}
	}
	return err
}
