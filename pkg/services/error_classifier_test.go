package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queryforge/queryforge-engine/pkg/models"
)

func TestClassifyExecutionError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    models.SQLErrorType
	}{
		{
			name:    "postgres missing column",
			message: `column "custmer_name" does not exist`,
			want:    models.SQLErrorColumnNotFound,
		},
		{
			name:    "postgres missing relation",
			message: `relation "custmers" does not exist`,
			want:    models.SQLErrorTableNotFound,
		},
		{
			name:    "sqlserver invalid object",
			message: "Invalid object name 'Custmers'.",
			want:    models.SQLErrorTableNotFound,
		},
		{
			name:    "syntax error",
			message: "syntax error at or near \"FORM\"",
			want:    models.SQLErrorSyntax,
		},
		{
			name:    "operator type mismatch",
			message: "operator does not exist: integer = text",
			want:    models.SQLErrorTypeMismatch,
		},
		{
			name:    "group by violation",
			message: `column "orders.total" must appear in the GROUP BY clause or be used in an aggregate function`,
			want:    models.SQLErrorColumnNotFound, // "column" wins by rule order
		},
		{
			name:    "aggregate misuse",
			message: "aggregate functions are not allowed in WHERE",
			want:    models.SQLErrorAggregation,
		},
		{
			name:    "ambiguous join column",
			message: `ambiguous column name "id"`,
			want:    models.SQLErrorColumnNotFound, // "column" wins by rule order
		},
		{
			name:    "join without condition",
			message: "JOIN expression is missing a condition",
			want:    models.SQLErrorJoin,
		},
		{
			name:    "statement timeout",
			message: "canceling statement due to statement timeout",
			want:    models.SQLErrorSystem,
		},
		{
			name:    "unmatched message",
			message: "something entirely novel happened",
			want:    models.SQLErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := ClassifyExecutionError(tt.message)
			assert.Equal(t, tt.want, analysis.ErrorType)
			assert.Equal(t, tt.message, analysis.RawMessage)
			assert.NotEmpty(t, analysis.Suggestion)
		})
	}
}

func TestClassifyExecutionErrorIsCaseInsensitive(t *testing.T) {
	analysis := ClassifyExecutionError("SYNTAX ERROR NEAR SELECT")
	assert.Equal(t, models.SQLErrorSyntax, analysis.ErrorType)
}
