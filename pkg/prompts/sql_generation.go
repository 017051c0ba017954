// Package prompts builds the LLM prompts used for SQL drafting, repair, and
// refinement.
package prompts

import (
	"fmt"
	"strings"

	"github.com/queryforge/queryforge-engine/pkg/models"
)

// SQLSystemMessage primes the model for SQL-only output.
const SQLSystemMessage = "You are a SQL expert. Generate a single read-only SQL statement " +
	"(SELECT or WITH) for the user's question using only the tables and columns provided. " +
	"Respond with SQL only, no explanation."

// BuildSQLGenerationPrompt creates the first-draft prompt from the linked
// schema subset.
func BuildSQLGenerationPrompt(question string, tables []models.TableInfo) string {
	var prompt strings.Builder

	prompt.WriteString("# Task\n\n")
	prompt.WriteString("Write a SQL query that answers the question below.\n\n")

	writeSchemaSection(&prompt, tables)

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n")

	return prompt.String()
}

// BuildRepairPrompt creates the prompt for fixing SQL that failed to execute.
// It is seeded with the classified error type and its remediation hint.
func BuildRepairPrompt(question, failedSQL string, analysis *models.ErrorAnalysis, tables []models.TableInfo) string {
	var prompt strings.Builder

	prompt.WriteString("# Task\n\n")
	prompt.WriteString("The SQL below failed to execute. Fix it.\n\n")

	writeSchemaSection(&prompt, tables)

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n## Failed SQL\n\n```sql\n")
	prompt.WriteString(failedSQL)
	prompt.WriteString("\n```\n\n## Error\n\n")
	prompt.WriteString(fmt.Sprintf("Type: %s\n", analysis.ErrorType))
	prompt.WriteString(fmt.Sprintf("Message: %s\n", analysis.RawMessage))
	prompt.WriteString(fmt.Sprintf("Suggestion: %s\n", analysis.Suggestion))

	return prompt.String()
}

// BuildRefinementPrompt creates the prompt for SQL that executed but produced
// a result set failing validation.
func BuildRefinementPrompt(question, currentSQL string, issues []string, tables []models.TableInfo) string {
	var prompt strings.Builder

	prompt.WriteString("# Task\n\n")
	prompt.WriteString("The SQL below executed, but its results look wrong. Refine it.\n\n")

	writeSchemaSection(&prompt, tables)

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n## Current SQL\n\n```sql\n")
	prompt.WriteString(currentSQL)
	prompt.WriteString("\n```\n\n## Issues\n\n")
	for _, issue := range issues {
		prompt.WriteString("- ")
		prompt.WriteString(issue)
		prompt.WriteString("\n")
	}

	return prompt.String()
}

// writeSchemaSection formats the linked tables the way the drafting model
// reads best: one section per table, enabled columns with flags, then the
// relationship sentences.
func writeSchemaSection(prompt *strings.Builder, tables []models.TableInfo) {
	prompt.WriteString("## Available Schema\n\n")

	for _, table := range tables {
		prompt.WriteString(fmt.Sprintf("### %s\n", table.TableName))
		if table.Description != "" {
			prompt.WriteString(table.Description)
			prompt.WriteString("\n")
		}
		prompt.WriteString("Columns:\n")
		for _, col := range table.EnabledColumns() {
			flags := ""
			if col.IsPrimaryKey {
				flags += " [PK]"
			}
			if col.IsNullable {
				flags += " (nullable)"
			}
			desc := ""
			if col.Description != "" {
				desc = " - " + col.Description
			}
			prompt.WriteString(fmt.Sprintf("- %s (%s)%s%s\n", col.ColumnName, col.DataType, flags, desc))
		}
		for _, fk := range table.ForeignKeys {
			prompt.WriteString(fmt.Sprintf("- FK: %s.%s -> %s.%s\n",
				table.TableName, fk.SourceColumn, fk.ReferencedTable, fk.ReferencedColumn))
		}
		prompt.WriteString("\n")
	}
}
