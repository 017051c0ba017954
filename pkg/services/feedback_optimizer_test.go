package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/config"
	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/models"
)

func testOptimizerConfig() config.OptimizerConfig {
	return config.OptimizerConfig{MaxIterations: 3, IterationTimeoutSeconds: 60}
}

func newTestOptimizer(executor datasource.Executor, client llm.LLMClient) FeedbackOptimizer {
	validator := NewResultValidator(DefaultLexicon())
	return NewFeedbackOptimizer(executor, client, validator, testOptimizerConfig(), zap.NewNop())
}

func resultWithRows(n int) *datasource.QueryResult {
	result := &datasource.QueryResult{Columns: []string{"id", "name"}}
	for i := 0; i < n; i++ {
		result.Rows = append(result.Rows, map[string]any{"id": int64(i), "name": fmt.Sprintf("row-%d", i)})
	}
	return result
}

func TestOptimizeSucceedsOnFirstPass(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.Responses = []datasource.MockResponse{
		{Result: resultWithRows(3)},
	}
	client := llm.NewMockLLMClient()
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "list customer names", "SELECT name FROM customers", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Iterations())
	assert.Equal(t, "SELECT name FROM customers", result.FinalSQL)
	assert.Len(t, result.Rows, 3)
	assert.Equal(t, 0, client.GenerateResponseCalls)

	step := result.Steps[0]
	assert.True(t, step.ExecutionOK)
	assert.Equal(t, 3, step.RowCount)
	require.NotNil(t, step.Validation)
	assert.True(t, step.Validation.IsValid)
}

func TestOptimizeRepairsExecutionError(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.Responses = []datasource.MockResponse{
		{Err: &datasource.ExecutionError{Message: `column "custmer_name" does not exist`}},
		{Result: resultWithRows(2)},
	}
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "```sql\nSELECT customer_name FROM customers\n```", nil
	}
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "list customer names", "SELECT custmer_name FROM customers", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Equal(t, 2, result.Iterations())
	assert.Equal(t, "SELECT customer_name FROM customers", result.FinalSQL)

	first := result.Steps[0]
	assert.False(t, first.ExecutionOK)
	require.NotNil(t, first.ErrorAnalysis)
	assert.Equal(t, models.SQLErrorColumnNotFound, first.ErrorAnalysis.ErrorType)
	assert.Equal(t, "SELECT customer_name FROM customers", first.OutputSQL)

	assert.True(t, result.Steps[1].ExecutionOK)
	assert.Equal(t, 1, client.GenerateResponseCalls)
}

func TestOptimizeExhaustsIterationBudget(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.ExecuteQueryFunc = func(context.Context, string, string) (*datasource.QueryResult, error) {
		return nil, &datasource.ExecutionError{Message: "syntax error at or near FROM"}
	}
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "SELECT 1", nil
	}
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "anything", "SELEC broken", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Iterations())
	// The final iteration records the failure but does not ask for a repair.
	assert.Empty(t, result.Steps[2].OutputSQL)
	assert.Equal(t, 2, client.GenerateResponseCalls)
}

func TestOptimizeAbortsOnInfrastructureFault(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.ExecuteQueryFunc = func(context.Context, string, string) (*datasource.QueryResult, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	client := llm.NewMockLLMClient()
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "anything", "SELECT 1", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Equal(t, 1, result.Iterations())
	require.NotNil(t, result.Steps[0].ErrorAnalysis)
	assert.Equal(t, models.SQLErrorSystem, result.Steps[0].ErrorAnalysis.ErrorType)
	assert.Equal(t, 0, client.GenerateResponseCalls)
}

func TestOptimizeRefinesInvalidResult(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.Responses = []datasource.MockResponse{
		{Result: resultWithRows(250)}, // too many rows for a "top" question
		{Result: resultWithRows(5)},
	}
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "SELECT name FROM customers LIMIT 5", nil
	}
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "top customers by revenue", "SELECT name FROM customers", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Equal(t, 2, result.Iterations())

	first := result.Steps[0]
	assert.True(t, first.ExecutionOK)
	require.NotNil(t, first.Validation)
	assert.False(t, first.Validation.IsValid)
	assert.Equal(t, "SELECT name FROM customers LIMIT 5", first.OutputSQL)

	assert.Equal(t, "SELECT name FROM customers LIMIT 5", result.FinalSQL)
}

func TestOptimizeStopsWhenRepairProducesUnusableSQL(t *testing.T) {
	executor := datasource.NewMockExecutor()
	executor.ExecuteQueryFunc = func(context.Context, string, string) (*datasource.QueryResult, error) {
		return nil, &datasource.ExecutionError{Message: "syntax error"}
	}
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "DROP TABLE customers", nil
	}
	optimizer := newTestOptimizer(executor, client)

	result, err := optimizer.OptimizeWithFeedback(context.Background(),
		"conn-1", "anything", "SELEC broken", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Iterations())
}
