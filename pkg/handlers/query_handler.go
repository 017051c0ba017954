package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/services"
)

// QueryHandler handles question answering and conversation endpoints.
type QueryHandler struct {
	pipeline     services.QueryPipeline
	linker       services.SchemaLinker
	graphBuilder services.SchemaGraphBuilder
	conversation services.ConversationContext
	history      repositories.QueryHistoryRepository
	logger       *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(
	pipeline services.QueryPipeline,
	linker services.SchemaLinker,
	graphBuilder services.SchemaGraphBuilder,
	conversation services.ConversationContext,
	history repositories.QueryHistoryRepository,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{
		pipeline:     pipeline,
		linker:       linker,
		graphBuilder: graphBuilder,
		conversation: conversation,
		history:      history,
		logger:       logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/connections/{connection_id}"

	mux.HandleFunc("POST "+base+"/query", h.Ask)
	mux.HandleFunc("GET "+base+"/schema/relevant", h.RelevantSchema)
	mux.HandleFunc("GET "+base+"/schema/graph", h.SchemaGraph)
	mux.HandleFunc("GET "+base+"/context", h.Context)
	mux.HandleFunc("DELETE "+base+"/context", h.ClearContext)
	mux.HandleFunc("GET "+base+"/history", h.History)
}

// AskRequest is the body of POST /query.
type AskRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /api/connections/{connection_id}/query
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field")
		return
	}

	result, err := h.pipeline.Ask(r.Context(), connectionID, req.Question)
	if err != nil {
		h.writeAskError(w, connectionID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

// RelevantSchema handles GET /api/connections/{connection_id}/schema/relevant
func (h *QueryHandler) RelevantSchema(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")
	question := r.URL.Query().Get("question")

	schema, err := h.linker.GetRelevantSchema(r.Context(), connectionID, question)
	if err != nil {
		h.writeAskError(w, connectionID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, schema); err != nil {
		h.logger.Error("Failed to encode relevant schema response", zap.Error(err))
	}
}

// SchemaGraph handles GET /api/connections/{connection_id}/schema/graph
func (h *QueryHandler) SchemaGraph(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	graph, err := h.graphBuilder.BuildSchemaGraph(r.Context(), connectionID)
	if err != nil {
		h.writeAskError(w, connectionID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, graph); err != nil {
		h.logger.Error("Failed to encode schema graph response", zap.Error(err))
	}
}

// ContextResponse is the body of GET /context.
type ContextResponse struct {
	History  []models.ConversationTurn `json:"history"`
	Filters  map[string]string         `json:"filters,omitempty"`
	Entities []string                  `json:"entities,omitempty"`
}

// Context handles GET /api/connections/{connection_id}/context
func (h *QueryHandler) Context(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	resp := ContextResponse{
		History:  h.conversation.History(connectionID),
		Filters:  h.conversation.ActiveFilters(connectionID),
		Entities: h.conversation.ReferencedEntities(connectionID),
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode context response", zap.Error(err))
	}
}

// ClearContext handles DELETE /api/connections/{connection_id}/context
func (h *QueryHandler) ClearContext(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")
	h.conversation.ClearContext(connectionID)
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/connections/{connection_id}/history
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := h.history.ListByConnection(r.Context(), connectionID, limit)
	if err != nil {
		h.logger.Error("Failed to list query history", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, entries); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
	}
}

// writeAskError maps pipeline errors onto HTTP statuses.
func (h *QueryHandler) writeAskError(w http.ResponseWriter, connectionID string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuestion):
		_ = ErrorResponse(w, http.StatusBadRequest, "empty_question", "question must not be empty")
	case errors.Is(err, apperrors.ErrInjectionBlocked):
		_ = ErrorResponse(w, http.StatusBadRequest, "injection_blocked", "question contains a value that looks like SQL injection")
	case errors.Is(err, apperrors.ErrNoSchema):
		_ = ErrorResponse(w, http.StatusNotFound, "schema_not_found", "no trained schema for connection "+connectionID)
	default:
		h.logger.Error("Question processing failed",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "query_failed", err.Error())
	}
}
