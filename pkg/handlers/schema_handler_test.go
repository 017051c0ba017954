package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/models"
)

type fakeTrainer struct {
	trained   []*models.ConnectionSchema
	tables    []models.TableInfo
	dropped   []string
	resets    []string
	returnErr error
}

func (f *fakeTrainer) TrainConnection(_ context.Context, schema *models.ConnectionSchema) error {
	f.trained = append(f.trained, schema)
	return f.returnErr
}

func (f *fakeTrainer) TrainTable(_ context.Context, _ string, table models.TableInfo) error {
	f.tables = append(f.tables, table)
	return f.returnErr
}

func (f *fakeTrainer) DropTable(_ context.Context, _, tableName string) error {
	f.dropped = append(f.dropped, tableName)
	return f.returnErr
}

func (f *fakeTrainer) ResetConnection(_ context.Context, connectionID string) error {
	f.resets = append(f.resets, connectionID)
	return f.returnErr
}

func newSchemaMux(trainer *fakeTrainer) *http.ServeMux {
	mux := http.NewServeMux()
	NewSchemaHandler(trainer, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestTrainConnectionEndpoint(t *testing.T) {
	trainer := &fakeTrainer{}
	mux := newSchemaMux(trainer)

	body := `[{"table_name": "customers", "columns": [{"column_name": "id", "data_type": "integer", "is_enabled": true}]}]`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/connections/conn-1/schema", strings.NewReader(body))
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, trainer.trained, 1)
	assert.Equal(t, "conn-1", trainer.trained[0].ConnectionID)
	assert.Len(t, trainer.trained[0].Tables, 1)
}

func TestTrainConnectionEndpointRejectsEmptySchema(t *testing.T) {
	mux := newSchemaMux(&fakeTrainer{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/connections/conn-1/schema", strings.NewReader("[]"))
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainTableEndpoint(t *testing.T) {
	trainer := &fakeTrainer{}
	mux := newSchemaMux(trainer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/connections/conn-1/schema/tables",
		strings.NewReader(`{"table_name": "orders", "columns": []}`))
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, trainer.tables, 1)
	assert.Equal(t, "orders", trainer.tables[0].TableName)
}

func TestTrainTableEndpointRequiresName(t *testing.T) {
	mux := newSchemaMux(&fakeTrainer{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/connections/conn-1/schema/tables",
		strings.NewReader(`{"columns": []}`))
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDropTableEndpoint(t *testing.T) {
	trainer := &fakeTrainer{}
	mux := newSchemaMux(trainer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/connections/conn-1/schema/tables/orders", nil)
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"orders"}, trainer.dropped)
}

func TestResetConnectionEndpoint(t *testing.T) {
	trainer := &fakeTrainer{}
	mux := newSchemaMux(trainer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/connections/conn-1/schema", nil)
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"conn-1"}, trainer.resets)
}
