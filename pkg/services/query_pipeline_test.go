package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/vector"
)

type pipelineFixture struct {
	pipeline     QueryPipeline
	conversation ConversationContext
	executor     *datasource.MockExecutor
	client       *llm.MockLLMClient
	store        *fakeVectorStore
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	repo := &fakeSchemaRepo{schemas: map[string]*models.ConnectionSchema{
		"conn-1": commerceSchema("conn-1"),
	}}
	store := &fakeVectorStore{
		searchFunc: func(float64) []vector.Match {
			return []vector.Match{{ID: "conn-1:customers", Score: 0.85}}
		},
	}
	executor := datasource.NewMockExecutor()
	executor.ExecuteQueryFunc = func(context.Context, string, string) (*datasource.QueryResult, error) {
		return resultWithRows(2), nil
	}
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "```sql\nSELECT name FROM customers\n```", nil
	}

	logger := zap.NewNop()
	lexicon := DefaultLexicon()
	linker := NewSchemaLinker(repo, store, testRetrievalConfig(), logger)
	validator := NewResultValidator(lexicon)
	optimizer := NewFeedbackOptimizer(executor, client, validator, testOptimizerConfig(), logger)
	conversation := NewConversationContext(lexicon, 10, logger)

	return &pipelineFixture{
		pipeline:     NewQueryPipeline(linker, optimizer, conversation, client, nil, logger),
		conversation: conversation,
		executor:     executor,
		client:       client,
		store:        store,
	}
}

func TestAskAnswersQuestion(t *testing.T) {
	f := newPipelineFixture(t)

	result, err := f.pipeline.Ask(context.Background(), "conn-1", "list the customer names")
	require.NoError(t, err)

	assert.Equal(t, models.QueryTypeNewQuery, result.QueryType)
	assert.Equal(t, "list the customer names", result.ResolvedQuestion)
	assert.True(t, result.Optimization.Success)
	assert.Equal(t, "SELECT name FROM customers", result.Optimization.FinalSQL)
	require.NotNil(t, result.Schema)
	assert.False(t, result.Schema.UsedFallback)

	history := f.conversation.History("conn-1")
	require.Len(t, history, 1)
	assert.Equal(t, "list the customer names", history[0].UserMessage)
	assert.Equal(t, "2 records, 2 fields", history[0].ResultSummary)
	assert.Equal(t, "Query returned 2 rows.", history[0].AssistantMessage)
}

func TestAskRewritesFollowups(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Ask(context.Background(), "conn-1", "list orders from March")
	require.NoError(t, err)

	result, err := f.pipeline.Ask(context.Background(), "conn-1", "only the shipped ones")
	require.NoError(t, err)

	assert.Equal(t, models.QueryTypeFilterRefinement, result.QueryType)
	assert.Contains(t, result.ResolvedQuestion, "list orders from March")
	assert.Contains(t, result.ResolvedQuestion, "only the shipped ones")
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Ask(context.Background(), "conn-1", "  \t ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuestion)
	assert.Equal(t, 0, f.client.GenerateResponseCalls)
}

func TestAskBlocksInjectionValues(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Ask(context.Background(), "conn-1",
		"show customers named '1 OR 1=1 --'")
	assert.ErrorIs(t, err, apperrors.ErrInjectionBlocked)
	assert.Empty(t, f.executor.Calls)
}

func TestAskSurfacesMissingSchema(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Ask(context.Background(), "unknown-conn", "list customers")
	assert.ErrorIs(t, err, apperrors.ErrNoSchema)
}

func TestAskRejectsNonSelectDraft(t *testing.T) {
	f := newPipelineFixture(t)
	f.client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "DELETE FROM customers", nil
	}

	_, err := f.pipeline.Ask(context.Background(), "conn-1", "remove every customer")
	require.Error(t, err)
	assert.Empty(t, f.executor.Calls)
}
