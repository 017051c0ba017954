//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/testhelpers"
)

func newIntegrationExecutor(t *testing.T) *Executor {
	engineDB := testhelpers.GetEngineDB(t)

	resolve := func(connectionID string) (string, error) {
		if connectionID != "it-conn" {
			return "", errors.New("unknown connection")
		}
		return engineDB.ConnStr, nil
	}

	executor := NewExecutor(resolve, zap.NewNop())
	t.Cleanup(func() { _ = executor.Close() })
	return executor
}

func TestExecuteQueryAgainstPostgres(t *testing.T) {
	executor := newIntegrationExecutor(t)

	result, err := executor.ExecuteQuery(context.Background(), "it-conn",
		"SELECT 1 AS one, 'hello' AS greeting")
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount())
	assert.Equal(t, []string{"one", "greeting"}, result.Columns)
	assert.EqualValues(t, 1, result.Rows[0]["one"])
	assert.Equal(t, "hello", result.Rows[0]["greeting"])
}

func TestExecuteQueryReturnsExecutionErrorData(t *testing.T) {
	executor := newIntegrationExecutor(t)

	_, err := executor.ExecuteQuery(context.Background(), "it-conn",
		"SELECT nope FROM missing_table")
	require.Error(t, err)

	var execErr *datasource.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "missing_table")
}

func TestExecuteQueryUnknownConnection(t *testing.T) {
	executor := newIntegrationExecutor(t)

	_, err := executor.ExecuteQuery(context.Background(), "other-conn", "SELECT 1")
	require.Error(t, err)

	var execErr *datasource.ExecutionError
	assert.False(t, errors.As(err, &execErr))
}
