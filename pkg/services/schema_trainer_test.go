package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/models"
)

func newTestTrainer(repo *fakeSchemaRepo, store *fakeVectorStore) SchemaTrainer {
	return NewSchemaTrainer(repo, store, zap.NewNop())
}

func TestTrainTableReplacesStaleEmbedding(t *testing.T) {
	repo := &fakeSchemaRepo{}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	table := models.TableInfo{
		TableName:   "orders",
		Description: "customer orders",
		Columns: []models.ColumnInfo{
			{ColumnName: "id", DataType: "integer", IsPrimaryKey: true, IsEnabled: true},
			{ColumnName: "total", DataType: "numeric", IsEnabled: true},
			{ColumnName: "internal_flag", DataType: "boolean", IsEnabled: false},
		},
		ForeignKeys: []models.ForeignKeyInfo{
			{SourceColumn: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"},
		},
	}

	require.NoError(t, trainer.TrainTable(context.Background(), "conn-1", table))

	require.Equal(t, []string{"delete conn-1:orders", "save conn-1:orders"}, store.ops)

	text := store.saved["conn-1:orders"]
	assert.Contains(t, text, "Table orders: customer orders")
	assert.Contains(t, text, "Column total (numeric)")
	assert.Contains(t, text, "References customers via customer_id -> id")
	assert.NotContains(t, text, "internal_flag")

	stored := repo.schemas["conn-1"]
	require.NotNil(t, stored)
	_, found := stored.FindTable("orders")
	assert.True(t, found)
}

func TestTrainTableLoadFailureDoesNotOverwriteSchema(t *testing.T) {
	repo := &fakeSchemaRepo{getErr: errors.New("connection refused")}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	err := trainer.TrainTable(context.Background(), "conn-1", models.TableInfo{TableName: "orders"})
	require.Error(t, err)

	// Nothing written: a transient read failure must not replace the stored
	// schema or touch the index.
	assert.Empty(t, repo.schemas)
	assert.Empty(t, store.ops)
}

func TestTrainTableReplacesExistingDefinition(t *testing.T) {
	repo := &fakeSchemaRepo{schemas: map[string]*models.ConnectionSchema{
		"conn-1": commerceSchema("conn-1"),
	}}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	updated := models.TableInfo{
		TableName:   "Orders",
		Description: "updated",
		Columns:     []models.ColumnInfo{{ColumnName: "id", DataType: "integer", IsEnabled: true}},
	}
	require.NoError(t, trainer.TrainTable(context.Background(), "conn-1", updated))

	stored := repo.schemas["conn-1"]
	assert.Len(t, stored.Tables, 4)
	table, found := stored.FindTable("orders")
	require.True(t, found)
	assert.Equal(t, "updated", table.Description)
}

func TestTrainConnectionReindexesEverything(t *testing.T) {
	repo := &fakeSchemaRepo{}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	schema := commerceSchema("conn-1")
	require.NoError(t, trainer.TrainConnection(context.Background(), schema))

	assert.Equal(t, []string{"conn-1"}, store.deletedCollections)
	assert.Len(t, store.saved, 4)
	assert.Contains(t, store.saved, "conn-1:order_items")
}

func TestDropTable(t *testing.T) {
	repo := &fakeSchemaRepo{schemas: map[string]*models.ConnectionSchema{
		"conn-1": commerceSchema("conn-1"),
	}}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	require.NoError(t, trainer.DropTable(context.Background(), "conn-1", "Order_Items"))

	stored := repo.schemas["conn-1"]
	assert.Len(t, stored.Tables, 3)
	_, found := stored.FindTable("order_items")
	assert.False(t, found)
	assert.Contains(t, store.deletedIDs, "conn-1:order_items")
}

func TestResetConnection(t *testing.T) {
	repo := &fakeSchemaRepo{schemas: map[string]*models.ConnectionSchema{
		"conn-1": commerceSchema("conn-1"),
	}}
	store := &fakeVectorStore{}
	trainer := newTestTrainer(repo, store)

	require.NoError(t, trainer.ResetConnection(context.Background(), "conn-1"))

	assert.Equal(t, []string{"conn-1"}, repo.deleted)
	assert.Equal(t, []string{"conn-1"}, store.deletedCollections)
}

func TestBuildTableDescription(t *testing.T) {
	table := models.TableInfo{
		TableName: "customers",
		Columns: []models.ColumnInfo{
			{ColumnName: "id", DataType: "integer", IsEnabled: true},
			{ColumnName: "email", DataType: "text", Description: "contact address", IsEnabled: true},
		},
	}

	text := BuildTableDescription(table)
	assert.Equal(t, "Table customers\nColumn id (integer)\nColumn email (text): contact address", text)
}
