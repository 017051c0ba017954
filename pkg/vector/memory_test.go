package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryforge/queryforge-engine/pkg/llm"
)

// axisEmbedder maps known texts to fixed unit vectors so similarity scores
// in tests are exact.
func axisEmbedder(vectors map[string][]float32) *llm.MockLLMClient {
	mock := llm.NewMockLLMClient()
	mock.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		if v, ok := vectors[input]; ok {
			return v, nil
		}
		return []float32{0, 0, 1}, nil
	}
	return mock
}

func TestMemoryStore_SearchRanksByScore(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"orders table":    {1, 0, 0},
		"customers table": {0.9, 0.1, 0},
		"logs table":      {0, 1, 0},
		"orders?":         {1, 0, 0},
	})

	store := NewMemoryStore(embedder)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conn-1", "orders", "orders table"))
	require.NoError(t, store.Save(ctx, "conn-1", "customers", "customers table"))
	require.NoError(t, store.Save(ctx, "conn-1", "logs", "logs table"))

	matches, err := store.Search(ctx, "conn-1", "orders?", 5, 0.5)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "orders", matches[0].ID)
	assert.Equal(t, "customers", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryStore_SearchHonorsLimitAndThreshold(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"a": {1, 0, 0}, "b": {1, 0, 0}, "c": {1, 0, 0}, "q": {1, 0, 0},
	})
	store := NewMemoryStore(embedder)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, "coll", id, id))
	}

	matches, err := store.Search(ctx, "coll", "q", 2, 0.0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = store.Search(ctx, "coll", "q", 5, 1.1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStore_SaveReplacesAndDelete(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"old": {0, 1, 0},
		"new": {1, 0, 0},
		"q":   {1, 0, 0},
	})
	store := NewMemoryStore(embedder)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "coll", "t1", "old"))
	require.NoError(t, store.Save(ctx, "coll", "t1", "new"))

	matches, err := store.Search(ctx, "coll", "q", 5, 0.9)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)

	require.NoError(t, store.Delete(ctx, "coll", "t1"))
	matches, err = store.Search(ctx, "coll", "q", 5, 0.0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStore_DeleteCollection(t *testing.T) {
	embedder := axisEmbedder(nil)
	store := NewMemoryStore(embedder)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "coll", "t1", "anything"))
	require.NoError(t, store.DeleteCollection(ctx, "coll"))

	matches, err := store.Search(ctx, "coll", "q", 5, 0.0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
