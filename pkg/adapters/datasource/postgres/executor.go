// Package postgres executes generated SQL against PostgreSQL datasources.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/logging"
)

// Executor runs queries against PostgreSQL, caching one pool per connection id.
type Executor struct {
	resolve datasource.DSNResolver
	logger  *zap.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewExecutor creates a PostgreSQL executor.
func NewExecutor(resolve datasource.DSNResolver, logger *zap.Logger) *Executor {
	return &Executor{
		resolve: resolve,
		logger:  logger.Named("pg-executor"),
		pools:   make(map[string]*pgxpool.Pool),
	}
}

var _ datasource.Executor = (*Executor)(nil)

// ExecuteQuery runs a statement and scans up to MaxResultRows rows.
// Database-reported failures are returned as *datasource.ExecutionError.
func (e *Executor) ExecuteQuery(ctx context.Context, connectionID, sqlQuery string) (*datasource.QueryResult, error) {
	pool, err := e.pool(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing query",
		zap.String("connection_id", connectionID),
		zap.String("sql", logging.SanitizeSQL(sqlQuery)))

	rows, err := pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, wrapDatabaseError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &datasource.QueryResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= datasource.MaxResultRows {
			break
		}

		values, err := rows.Values()
		if err != nil {
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

// Close releases all cached pools.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, pool := range e.pools {
		pool.Close()
	}
	e.pools = make(map[string]*pgxpool.Pool)
	return nil
}

// pool returns the cached pool for a connection, creating it on first use.
func (e *Executor) pool(ctx context.Context, connectionID string) (*pgxpool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pool, ok := e.pools[connectionID]; ok {
		return pool, nil
	}

	dsn, err := e.resolve(connectionID)
	if err != nil {
		return nil, fmt.Errorf("resolve connection %s: %w", connectionID, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool for %s: %w", connectionID, err)
	}

	e.pools[connectionID] = pool
	return pool, nil
}

// wrapDatabaseError turns server-reported errors into ExecutionError data for
// the repair loop; everything else (cancellation, connectivity) stays an
// infrastructure fault.
func wrapDatabaseError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &datasource.ExecutionError{Message: pgErr.Message}
	}
	return err
}
