package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/logging"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/prompts"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/retry"
	sqlutil "github.com/queryforge/queryforge-engine/pkg/sql"
)

// draftTemperature keeps first drafts deterministic, matching repair.
const draftTemperature = 0.0

// AskResult is one answered question: the rewritten question, the linked
// schema, and the optimization run that produced the final SQL.
type AskResult struct {
	Question         string                     `json:"question"`
	ResolvedQuestion string                     `json:"resolved_question"`
	QueryType        models.QueryType           `json:"query_type"`
	Schema           *models.RelevantSchema     `json:"schema"`
	Optimization     *models.OptimizationResult `json:"optimization"`
}

// QueryPipeline answers natural-language questions end to end: context
// resolution, schema linking, drafting, and the feedback loop.
type QueryPipeline interface {
	Ask(ctx context.Context, connectionID, question string) (*AskResult, error)
}

type queryPipeline struct {
	linker       SchemaLinker
	optimizer    FeedbackOptimizer
	conversation ConversationContext
	llmClient    llm.LLMClient
	history      repositories.QueryHistoryRepository
	retryCfg     *retry.Config
	logger       *zap.Logger
}

// NewQueryPipeline creates a new QueryPipeline. The history repository may be
// nil when runs should not be persisted.
func NewQueryPipeline(
	linker SchemaLinker,
	optimizer FeedbackOptimizer,
	conversation ConversationContext,
	llmClient llm.LLMClient,
	history repositories.QueryHistoryRepository,
	logger *zap.Logger,
) QueryPipeline {
	return &queryPipeline{
		linker:       linker,
		optimizer:    optimizer,
		conversation: conversation,
		llmClient:    llmClient,
		history:      history,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger.Named("query-pipeline"),
	}
}

var _ QueryPipeline = (*queryPipeline)(nil)

func (p *queryPipeline) Ask(ctx context.Context, connectionID, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	if err := screenForInjection(question); err != nil {
		p.logger.Warn("question blocked",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return nil, err
	}

	queryType := p.conversation.AnalyzeFollowupQuery(connectionID, question)
	resolved := p.conversation.ProcessIncrementalQuery(connectionID, question, queryType)

	schema, err := p.linker.GetRelevantSchema(ctx, connectionID, resolved)
	if err != nil {
		return nil, err
	}

	draft, err := p.draftSQL(ctx, resolved, schema.Tables)
	if err != nil {
		return nil, fmt.Errorf("draft SQL: %w", err)
	}

	optimization, err := p.optimizer.OptimizeWithFeedback(ctx, connectionID, resolved, draft, schema.Tables)
	if err != nil {
		return nil, err
	}

	fieldCount := 0
	if len(optimization.Rows) > 0 {
		fieldCount = len(optimization.Rows[0])
	}
	assistant := fmt.Sprintf("Query returned %d rows.", len(optimization.Rows))
	if !optimization.Success {
		assistant = "The query could not be completed."
	}
	p.conversation.UpdateContext(connectionID, question, assistant, optimization.FinalSQL, len(optimization.Rows), fieldCount)

	if p.history != nil {
		entry := &repositories.QueryHistoryEntry{
			ID:           optimization.ID,
			ConnectionID: connectionID,
			Question:     question,
			FinalSQL:     optimization.FinalSQL,
			Success:      optimization.Success,
			Iterations:   optimization.Iterations(),
		}
		if err := p.history.Record(ctx, entry); err != nil {
			p.logger.Warn("failed to record query history", zap.Error(err))
		}
	}

	p.logger.Info("question answered",
		zap.String("connection_id", connectionID),
		zap.String("query_type", string(queryType)),
		zap.Bool("success", optimization.Success),
		zap.Int("iterations", optimization.Iterations()),
		zap.String("final_sql", logging.SanitizeSQL(optimization.FinalSQL)))

	return &AskResult{
		Question:         question,
		ResolvedQuestion: resolved,
		QueryType:        queryType,
		Schema:           schema,
		Optimization:     optimization,
	}, nil
}

// draftSQL produces the first SQL draft. Transient LLM failures are retried.
func (p *queryPipeline) draftSQL(ctx context.Context, question string, tables []models.TableInfo) (string, error) {
	prompt := prompts.BuildSQLGenerationPrompt(question, tables)

	completion, err := retry.DoWithResult(ctx, p.retryCfg, func() (string, error) {
		return p.llmClient.GenerateResponse(ctx, prompt, prompts.SQLSystemMessage, draftTemperature)
	})
	if err != nil {
		return "", err
	}

	normalized, err := sqlutil.ValidateAndNormalize(sqlutil.ExtractStatement(completion))
	if err != nil {
		return "", err
	}
	if normalized == "" {
		return "", fmt.Errorf("model returned no SQL")
	}
	return normalized, nil
}

// screenForInjection checks the values a question carries (quoted strings,
// names, numbers) before they are templated into any prompt.
func screenForInjection(question string) error {
	for i, entity := range ExtractEntities(question) {
		if hit := sqlutil.CheckValueForInjection(fmt.Sprintf("entity_%d", i), entity); hit != nil {
			return fmt.Errorf("value %q matched fingerprint %s: %w",
				hit.Value, hit.Fingerprint, apperrors.ErrInjectionBlocked)
		}
	}
	return nil
}
