package services

import (
	"strings"

	"github.com/queryforge/queryforge-engine/pkg/models"
)

// errorRule maps message substrings to an error type. Rules are checked in
// order; the first match wins.
type errorRule struct {
	errorType  models.SQLErrorType
	substrings []string
	suggestion string
}

var errorRules = []errorRule{
	{
		errorType:  models.SQLErrorColumnNotFound,
		substrings: []string{"column", "unknown field", "invalid column", "no such column"},
		suggestion: "Use only columns listed in the schema. Check spelling and table qualification.",
	},
	{
		errorType:  models.SQLErrorTableNotFound,
		substrings: []string{"table", "relation", "no such table", "invalid object name"},
		suggestion: "Use only tables listed in the schema. Check the table name spelling.",
	},
	{
		errorType:  models.SQLErrorSyntax,
		substrings: []string{"syntax", "unexpected", "parse error", "incorrect syntax"},
		suggestion: "Rewrite the statement with valid SQL syntax. Check parentheses, commas, and keywords.",
	},
	{
		errorType:  models.SQLErrorTypeMismatch,
		substrings: []string{"type", "cannot cast", "invalid input", "conversion failed", "operator does not exist"},
		suggestion: "Cast values to the declared column types. Compare numbers to numbers and dates to dates.",
	},
	{
		errorType:  models.SQLErrorAggregation,
		substrings: []string{"group by", "aggregate", "must appear in the group by clause", "having"},
		suggestion: "Every non-aggregated select column must appear in GROUP BY.",
	},
	{
		errorType:  models.SQLErrorJoin,
		substrings: []string{"join", "ambiguous"},
		suggestion: "Join tables on their foreign-key columns and qualify ambiguous column names.",
	},
	{
		errorType:  models.SQLErrorSystem,
		substrings: []string{"timeout", "connection", "permission", "denied", "out of memory", "canceled", "cancelled"},
		suggestion: "The failure is environmental, not a query defect. Retry or simplify the query.",
	},
}

// ClassifyExecutionError maps a database error message onto the repair
// taxonomy. Matching is case-insensitive; unmatched messages classify as
// unknown with a generic rewrite hint.
func ClassifyExecutionError(message string) *models.ErrorAnalysis {
	lower := strings.ToLower(message)

	for _, rule := range errorRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return &models.ErrorAnalysis{
					ErrorType:  rule.errorType,
					RawMessage: message,
					Suggestion: rule.suggestion,
				}
			}
		}
	}

	return &models.ErrorAnalysis{
		ErrorType:  models.SQLErrorUnknown,
		RawMessage: message,
		Suggestion: "Rewrite the query using only the tables and columns in the schema.",
	}
}
