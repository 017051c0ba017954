// Package sql provides normalization and safety checks for LLM-produced SQL.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrNotSelect indicates the statement is not a read query.
	ErrNotSelect = errors.New("only SELECT and WITH statements are permitted")
)

// ExtractStatement pulls a bare SQL statement out of an LLM completion.
// Models wrap SQL in markdown fences more often than not; everything outside
// the first fenced block is dropped. Without fences the whole completion is
// treated as SQL.
func ExtractStatement(completion string) string {
	text := strings.TrimSpace(completion)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		// Skip a language tag like "sql" on the fence line
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, " \t") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}

	return text
}

// ValidateAndNormalize strips the trailing semicolon, rejects multi-statement
// input, and requires a read query. Applied to every SQL draft before
// execution.
func ValidateAndNormalize(sqlQuery string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return "", nil
	}

	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	upper := strings.ToUpper(normalized)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", ErrNotSelect
	}

	return normalized, nil
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals. Since the trailing semicolon has already been
// stripped, any remaining one indicates multiple statements.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('').
			// A doubled quote exits and immediately re-enters on the next
			// quote, which correctly keeps us inside the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}

// ExtractWhereClause returns the WHERE clause of a statement, up to GROUP BY,
// ORDER BY, HAVING, or LIMIT. Used to carry filters across conversation turns.
func ExtractWhereClause(sqlQuery string) (string, bool) {
	upper := strings.ToUpper(sqlQuery)

	start := strings.Index(upper, "WHERE ")
	if start < 0 {
		return "", false
	}

	clause := sqlQuery[start+len("WHERE "):]
	clauseUpper := upper[start+len("WHERE "):]

	end := len(clause)
	for _, stop := range []string{"GROUP BY", "ORDER BY", "HAVING", "LIMIT"} {
		if idx := strings.Index(clauseUpper, stop); idx >= 0 && idx < end {
			end = idx
		}
	}

	return strings.TrimSpace(clause[:end]), true
}
