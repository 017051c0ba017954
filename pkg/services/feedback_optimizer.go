package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/config"
	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/logging"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/prompts"
	sqlutil "github.com/queryforge/queryforge-engine/pkg/sql"
)

// repairTemperature keeps the repair and refinement completions deterministic.
const repairTemperature = 0.0

// FeedbackOptimizer runs the execute/validate/repair loop over one SQL draft.
// The loop is bounded by MaxIterations and each pass by the iteration timeout;
// it terminates on the first validated success.
type FeedbackOptimizer interface {
	OptimizeWithFeedback(ctx context.Context, connectionID, question, initialSQL string, tables []models.TableInfo) (*models.OptimizationResult, error)
}

type feedbackOptimizer struct {
	executor  datasource.Executor
	llmClient llm.LLMClient
	validator *ResultValidator
	cfg       config.OptimizerConfig
	logger    *zap.Logger
}

// NewFeedbackOptimizer creates a new FeedbackOptimizer.
func NewFeedbackOptimizer(executor datasource.Executor, llmClient llm.LLMClient, validator *ResultValidator, cfg config.OptimizerConfig, logger *zap.Logger) FeedbackOptimizer {
	return &feedbackOptimizer{
		executor:  executor,
		llmClient: llmClient,
		validator: validator,
		cfg:       cfg,
		logger:    logger.Named("feedback-optimizer"),
	}
}

var _ FeedbackOptimizer = (*feedbackOptimizer)(nil)

func (o *feedbackOptimizer) OptimizeWithFeedback(ctx context.Context, connectionID, question, initialSQL string, tables []models.TableInfo) (*models.OptimizationResult, error) {
	result := &models.OptimizationResult{
		ID:        uuid.New(),
		Question:  question,
		StartedAt: time.Now(),
	}
	defer func() { result.FinishedAt = time.Now() }()

	current := initialSQL
	for i := 1; i <= o.cfg.MaxIterations; i++ {
		step, done := o.runIteration(ctx, connectionID, question, current, i, tables, result)
		result.Steps = append(result.Steps, *step)
		if done {
			break
		}
		if step.OutputSQL != "" {
			current = step.OutputSQL
		}
	}

	if !result.Success {
		result.FinalSQL = current
		o.logger.Warn("optimization exhausted without a validated result",
			zap.String("connection_id", connectionID),
			zap.Int("iterations", result.Iterations()))
	}
	return result, nil
}

// runIteration performs one execute/validate/repair pass. It returns the
// recorded step and whether the loop is finished. Panics inside the pass are
// converted to a system-error step so one bad driver or prompt cannot take
// the caller down.
func (o *feedbackOptimizer) runIteration(ctx context.Context, connectionID, question, current string, iteration int, tables []models.TableInfo, result *models.OptimizationResult) (step *models.OptimizationStep, done bool) {
	step = &models.OptimizationStep{
		Iteration: iteration,
		InputSQL:  current,
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("optimization iteration panicked",
				zap.String("connection_id", connectionID),
				zap.Any("panic", r))
			step.ErrorAnalysis = &models.ErrorAnalysis{
				ErrorType:  models.SQLErrorSystem,
				RawMessage: fmt.Sprintf("internal fault: %v", r),
				Suggestion: "The failure is internal, not a query defect.",
			}
			done = true
		}
	}()

	iterCtx := ctx
	if o.cfg.IterationTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		iterCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.IterationTimeoutSeconds)*time.Second)
		defer cancel()
	}

	lastIteration := iteration == o.cfg.MaxIterations

	queryResult, err := o.executor.ExecuteQuery(iterCtx, connectionID, current)
	if err != nil {
		var execErr *datasource.ExecutionError
		if !errors.As(err, &execErr) {
			// Infrastructure fault: abort, there is nothing to repair.
			step.ErrorAnalysis = &models.ErrorAnalysis{
				ErrorType:  models.SQLErrorSystem,
				RawMessage: err.Error(),
				Suggestion: "The failure is environmental, not a query defect. Retry or simplify the query.",
			}
			return step, true
		}

		step.ErrorAnalysis = ClassifyExecutionError(execErr.Message)
		o.logger.Debug("execution failed",
			zap.Int("iteration", iteration),
			zap.String("error_type", string(step.ErrorAnalysis.ErrorType)),
			zap.String("sql", logging.SanitizeSQL(current)))

		if step.ErrorAnalysis.ErrorType == models.SQLErrorSystem || lastIteration {
			return step, true
		}

		repaired, err := o.generateSQL(iterCtx,
			prompts.BuildRepairPrompt(question, current, step.ErrorAnalysis, tables))
		if err != nil {
			o.logger.Warn("repair generation failed", zap.Error(err))
			return step, true
		}
		step.OutputSQL = repaired
		return step, false
	}

	step.ExecutionOK = true
	step.RowCount = queryResult.RowCount()
	step.Validation = o.validator.Validate(question, queryResult)

	if step.Validation.IsValid {
		result.Success = true
		result.FinalSQL = current
		result.Rows = queryResult.Rows
		return step, true
	}

	if lastIteration {
		return step, true
	}

	refined, err := o.generateSQL(iterCtx,
		prompts.BuildRefinementPrompt(question, current, step.Validation.Issues, tables))
	if err != nil {
		o.logger.Warn("refinement generation failed", zap.Error(err))
		return step, true
	}
	step.OutputSQL = refined
	return step, false
}

// generateSQL runs one repair or refinement completion and normalizes the
// returned statement.
func (o *feedbackOptimizer) generateSQL(ctx context.Context, prompt string) (string, error) {
	completion, err := o.llmClient.GenerateResponse(ctx, prompt, prompts.SQLSystemMessage, repairTemperature)
	if err != nil {
		return "", err
	}

	normalized, err := sqlutil.ValidateAndNormalize(sqlutil.ExtractStatement(completion))
	if err != nil {
		return "", fmt.Errorf("model produced an unusable statement: %w", err)
	}
	return normalized, nil
}
