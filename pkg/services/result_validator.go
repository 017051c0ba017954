package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	"github.com/queryforge/queryforge-engine/pkg/models"
)

// maxReasonableRows is the ceiling for a result with no explicit size cue in
// the question.
const maxReasonableRows = 10000

// smallResultRows is the ceiling when the question asks for a top-N slice.
const smallResultRows = 100

// ResultValidator checks an executed result set against expectations implied
// by the question wording: plausible size, consistent column types, and
// ordering for superlative questions.
type ResultValidator struct {
	lexicon *Lexicon
}

// NewResultValidator creates a validator with the given keyword tables.
func NewResultValidator(lexicon *Lexicon) *ResultValidator {
	return &ResultValidator{lexicon: lexicon}
}

// Validate runs all heuristics. A result is valid when no heuristic raises an
// issue; issues carry enough wording to drive a refinement prompt.
func (v *ResultValidator) Validate(question string, result *datasource.QueryResult) *models.ValidationResult {
	lower := strings.ToLower(question)
	var issues []string

	issues = append(issues, v.checkSize(lower, result)...)
	issues = append(issues, checkTypeConsistency(result)...)
	issues = append(issues, v.checkOrdering(lower, result)...)
	issues = append(issues, v.checkNonNull(lower, result)...)

	return &models.ValidationResult{
		IsValid: len(issues) == 0,
		Issues:  issues,
	}
}

func (v *ResultValidator) checkSize(question string, result *datasource.QueryResult) []string {
	n := result.RowCount()

	switch {
	case containsAny(question, v.lexicon.TopCues):
		if n > smallResultRows {
			return []string{fmt.Sprintf("question asks for a top slice but the result has %d rows", n)}
		}
	case containsAny(question, v.lexicon.AllCues):
		if n == 0 {
			return []string{"question asks for all records but the result is empty"}
		}
	default:
		if n == 0 {
			return []string{"result is empty"}
		}
		if n > maxReasonableRows {
			return []string{fmt.Sprintf("result has %d rows, more than the %d row ceiling", n, maxReasonableRows)}
		}
	}
	return nil
}

// checkTypeConsistency flags columns whose non-null values mix incompatible
// Go types across rows. Integer and float values are treated as one numeric
// family.
func checkTypeConsistency(result *datasource.QueryResult) []string {
	var issues []string

	for _, col := range result.Columns {
		seen := ""
		for _, row := range result.Rows {
			value, ok := row[col]
			if !ok || value == nil {
				continue
			}

			family := typeFamily(value)
			if seen == "" {
				seen = family
				continue
			}
			if family != seen {
				issues = append(issues, fmt.Sprintf("column %s mixes %s and %s values", col, seen, family))
				break
			}
		}
	}
	return issues
}

// checkOrdering validates every numeric column for superlative questions and
// every datetime column for recency questions. One column out of order is
// enough to reject the result.
func (v *ResultValidator) checkOrdering(question string, result *datasource.QueryResult) []string {
	if result.RowCount() < 2 {
		return nil
	}

	var issues []string
	switch {
	case containsAny(question, v.lexicon.HighestCues):
		for _, col := range result.Columns {
			if values, ok := numericColumnValues(result, col); ok && !CheckDescendingOrder(values) {
				issues = append(issues, fmt.Sprintf("question asks for the highest values but column %s is not in descending order", col))
			}
		}
	case containsAny(question, v.lexicon.LowestCues):
		for _, col := range result.Columns {
			if values, ok := numericColumnValues(result, col); ok && !CheckAscendingOrder(values) {
				issues = append(issues, fmt.Sprintf("question asks for the lowest values but column %s is not in ascending order", col))
			}
		}
	case containsAny(question, v.lexicon.RecentCues):
		for _, col := range result.Columns {
			if times, ok := temporalColumnValues(result, col); ok && !timesDescending(times) {
				issues = append(issues, fmt.Sprintf("question asks for recent records but time column %s is not in descending order", col))
			}
		}
	}
	return issues
}

func (v *ResultValidator) checkNonNull(question string, result *datasource.QueryResult) []string {
	if !containsAny(question, v.lexicon.NonNullCues) {
		return nil
	}

	for _, row := range result.Rows {
		for col, value := range row {
			if value == nil {
				return []string{fmt.Sprintf("question excludes empty values but column %s contains nulls", col)}
			}
		}
	}
	return nil
}

// CheckDescendingOrder reports whether values never increase.
func CheckDescendingOrder(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			return false
		}
	}
	return true
}

// CheckAscendingOrder reports whether values never decrease.
func CheckAscendingOrder(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

func timesDescending(times []time.Time) bool {
	for i := 1; i < len(times); i++ {
		if times[i].After(times[i-1]) {
			return false
		}
	}
	return true
}

// numericColumnValues extracts a column's non-null values in row order when
// they are all numeric. Rows with a null in that column are skipped.
func numericColumnValues(result *datasource.QueryResult, col string) ([]float64, bool) {
	values := make([]float64, 0, len(result.Rows))
	for _, row := range result.Rows {
		value := row[col]
		if value == nil {
			continue
		}
		f, ok := asFloat(value)
		if !ok {
			return nil, false
		}
		values = append(values, f)
	}
	return values, len(values) > 0
}

func temporalColumnValues(result *datasource.QueryResult, col string) ([]time.Time, bool) {
	times := make([]time.Time, 0, len(result.Rows))
	for _, row := range result.Rows {
		value := row[col]
		if value == nil {
			continue
		}
		t, ok := value.(time.Time)
		if !ok {
			return nil, false
		}
		times = append(times, t)
	}
	return times, len(times) > 0
}

// typeFamily buckets a scalar for consistency checks. All integer and float
// widths share the numeric family.
func typeFamily(value any) string {
	if _, ok := asFloat(value); ok {
		return "numeric"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case time.Time:
		return "time"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
