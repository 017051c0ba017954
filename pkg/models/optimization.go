package models

import (
	"time"

	"github.com/google/uuid"
)

// SQLErrorType classifies an execution error for the repair loop.
type SQLErrorType string

const (
	SQLErrorColumnNotFound SQLErrorType = "column_not_found"
	SQLErrorTableNotFound  SQLErrorType = "table_not_found"
	SQLErrorSyntax         SQLErrorType = "syntax_error"
	SQLErrorTypeMismatch   SQLErrorType = "type_mismatch"
	SQLErrorAggregation    SQLErrorType = "aggregation_error"
	SQLErrorJoin           SQLErrorType = "join_error"
	SQLErrorSystem         SQLErrorType = "system_error"
	SQLErrorUnknown        SQLErrorType = "unknown"
)

// ErrorAnalysis is a classified execution error with a remediation hint.
// Execution errors are data consumed by the repair loop, never raw surfaces.
type ErrorAnalysis struct {
	ErrorType  SQLErrorType `json:"error_type"`
	RawMessage string       `json:"raw_message"`
	Suggestion string       `json:"suggestion"`
}

// ValidationResult holds the outcome of result-set sanity checks.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues,omitempty"`
}

// OptimizationStep records one pass of the execute/validate/repair loop.
// Iteration is strictly increasing, starting at 1, bounded by maxIterations.
type OptimizationStep struct {
	Iteration     int               `json:"iteration"`
	InputSQL      string            `json:"input_sql"`
	ExecutionOK   bool              `json:"execution_ok"`
	RowCount      int               `json:"row_count"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	ErrorAnalysis *ErrorAnalysis    `json:"error_analysis,omitempty"`
	OutputSQL     string            `json:"output_sql,omitempty"`
}

// OptimizationResult is one optimization run for one user turn.
// Terminal on first validated success or after the iteration budget.
type OptimizationResult struct {
	ID         uuid.UUID          `json:"id"`
	Question   string             `json:"question"`
	FinalSQL   string             `json:"final_sql"`
	Success    bool               `json:"success"`
	Steps      []OptimizationStep `json:"steps"`
	Rows       []map[string]any   `json:"rows,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Iterations returns the number of passes the loop performed.
func (r *OptimizationResult) Iterations() int {
	return len(r.Steps)
}
