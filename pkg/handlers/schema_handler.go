package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/apperrors"
	"github.com/queryforge/queryforge-engine/pkg/models"
	"github.com/queryforge/queryforge-engine/pkg/services"
)

// SchemaHandler handles schema training endpoints.
type SchemaHandler struct {
	trainer services.SchemaTrainer
	logger  *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(trainer services.SchemaTrainer, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{trainer: trainer, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/connections/{connection_id}/schema"

	mux.HandleFunc("PUT "+base, h.TrainConnection)
	mux.HandleFunc("DELETE "+base, h.ResetConnection)
	mux.HandleFunc("POST "+base+"/tables", h.TrainTable)
	mux.HandleFunc("DELETE "+base+"/tables/{table_name}", h.DropTable)
}

// TrainConnection handles PUT /api/connections/{connection_id}/schema
// The body is the full table list; existing training is replaced.
func (h *SchemaHandler) TrainConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	var tables []models.TableInfo
	if err := json.NewDecoder(r.Body).Decode(&tables); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON table list")
		return
	}
	if len(tables) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "empty_schema", "schema must contain at least one table")
		return
	}

	schema := &models.ConnectionSchema{ConnectionID: connectionID, Tables: tables}
	if err := h.trainer.TrainConnection(r.Context(), schema); err != nil {
		h.logger.Error("Failed to train connection",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "training_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]int{"tables_trained": len(tables)}); err != nil {
		h.logger.Error("Failed to encode training response", zap.Error(err))
	}
}

// TrainTable handles POST /api/connections/{connection_id}/schema/tables
func (h *SchemaHandler) TrainTable(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	var table models.TableInfo
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON table definition")
		return
	}
	if table.TableName == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_table_name", "table_name is required")
		return
	}

	if err := h.trainer.TrainTable(r.Context(), connectionID, table); err != nil {
		h.logger.Error("Failed to train table",
			zap.String("connection_id", connectionID),
			zap.String("table", table.TableName),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "training_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DropTable handles DELETE /api/connections/{connection_id}/schema/tables/{table_name}
func (h *SchemaHandler) DropTable(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")
	tableName := r.PathValue("table_name")

	if err := h.trainer.DropTable(r.Context(), connectionID, tableName); err != nil {
		if errors.Is(err, apperrors.ErrNoSchema) {
			_ = ErrorResponse(w, http.StatusNotFound, "schema_not_found", "no trained schema for connection "+connectionID)
			return
		}
		h.logger.Error("Failed to drop table",
			zap.String("connection_id", connectionID),
			zap.String("table", tableName),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "drop_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetConnection handles DELETE /api/connections/{connection_id}/schema
func (h *SchemaHandler) ResetConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connection_id")

	if err := h.trainer.ResetConnection(r.Context(), connectionID); err != nil {
		h.logger.Error("Failed to reset connection",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
