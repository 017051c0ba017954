package logging

import (
	"regexp"
)

const (
	// MaxSQLLogLength is the maximum length of a SQL statement to log.
	MaxSQLLogLength = 200
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Matches single-quoted SQL string literals, including '' escapes.
	sqlLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Matches potential passwords in connection strings:
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter).
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches connection string credentials (user:pass@host format).
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeSQL masks string literals in a SQL statement and truncates it
// before logging. Literal values may carry customer data; structure is
// enough for diagnostics.
func SanitizeSQL(sql string) string {
	if sql == "" {
		return ""
	}

	sanitized := sqlLiteralPattern.ReplaceAllString(sql, "'?'")

	if len(sanitized) > MaxSQLLogLength {
		sanitized = sanitized[:MaxSQLLogLength] + "..."
	}

	return sanitized
}

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}
