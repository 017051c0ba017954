package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/services"
)

// QueryToolDeps contains dependencies for the question answering tools.
type QueryToolDeps struct {
	Pipeline     services.QueryPipeline
	Linker       services.SchemaLinker
	Conversation services.ConversationContext
	Logger       *zap.Logger
}

// RegisterQueryTools registers ask_question, get_relevant_schema, and
// clear_context on the MCP server.
func RegisterQueryTools(s *server.MCPServer, deps *QueryToolDeps) {
	registerAskQuestionTool(s, deps)
	registerRelevantSchemaTool(s, deps)
	registerClearContextTool(s, deps)
}

func registerAskQuestionTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"ask_question",
		mcp.WithDescription(
			"Answer a natural-language question against a trained database connection. "+
				"Links the relevant schema subset, drafts SQL, and runs an execute/validate/repair "+
				"loop before returning the final SQL, its result rows, and the per-iteration trace. "+
				"Follow-up questions are resolved against the conversation context.",
		),
		mcp.WithString(
			"connection_id",
			mcp.Required(),
			mcp.Description("Connection whose trained schema should answer the question"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The natural-language question"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connectionID, err := req.RequireString("connection_id")
		if err != nil {
			return nil, err
		}
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}

		result, err := deps.Pipeline.Ask(ctx, connectionID, question)
		if err != nil {
			if toolResult := askErrorResult(connectionID, err); toolResult != nil {
				return toolResult, nil
			}
			deps.Logger.Error("ask_question failed",
				zap.String("connection_id", connectionID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ask result: %w", err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}

func registerRelevantSchemaTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"get_relevant_schema",
		mcp.WithDescription(
			"Return the schema subset relevant to a question: vector-matched tables with their "+
				"scores plus foreign-key related tables. Falls back to the full schema when nothing matches.",
		),
		mcp.WithString(
			"connection_id",
			mcp.Required(),
			mcp.Description("Connection whose trained schema to search"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The natural-language question to match tables against"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connectionID, err := req.RequireString("connection_id")
		if err != nil {
			return nil, err
		}
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}

		schema, err := deps.Linker.GetRelevantSchema(ctx, connectionID, question)
		if err != nil {
			if toolResult := askErrorResult(connectionID, err); toolResult != nil {
				return toolResult, nil
			}
			return nil, fmt.Errorf("failed to link schema: %w", err)
		}

		payload, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal relevant schema: %w", err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}

func registerClearContextTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"clear_context",
		mcp.WithDescription("Drop the conversation history and active filters for a connection."),
		mcp.WithString(
			"connection_id",
			mcp.Required(),
			mcp.Description("Connection whose conversation context to clear"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connectionID, err := req.RequireString("connection_id")
		if err != nil {
			return nil, err
		}

		deps.Conversation.ClearContext(connectionID)
		return mcp.NewToolResultText(`{"cleared": true}`), nil
	})
}

// askErrorResult maps recoverable pipeline errors to structured tool results.
// Returns nil for system failures, which should surface as Go errors.
func askErrorResult(connectionID string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuestion):
		return NewErrorResult("empty_question", "question must not be empty")
	case errors.Is(err, apperrors.ErrInjectionBlocked):
		return NewErrorResult("injection_blocked", "question contains a value that looks like SQL injection")
	case errors.Is(err, apperrors.ErrNoSchema):
		return NewErrorResultWithDetails("schema_not_found",
			"no trained schema for this connection",
			map[string]string{"connection_id": connectionID})
	default:
		return nil
	}
}
