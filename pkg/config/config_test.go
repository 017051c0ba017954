package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv("test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, 0.7, cfg.Retrieval.RelevanceThreshold)
	assert.Equal(t, 0.4, cfg.Retrieval.ThresholdFloor)
	assert.Equal(t, 0.1, cfg.Retrieval.ThresholdStep)
	assert.Equal(t, 5, cfg.Retrieval.MaxTables)
	assert.Equal(t, 1, cfg.Retrieval.MinTablesRequired)
	assert.Equal(t, 10, cfg.Retrieval.MaxRelatedTables)
	assert.Equal(t, 3, cfg.Optimizer.MaxIterations)
	assert.Equal(t, 10, cfg.Context.MaxTurns)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("RETRIEVAL_RELEVANCE_THRESHOLD", "0.8")
	t.Setenv("OPTIMIZER_MAX_ITERATIONS", "5")
	t.Setenv("LLM_PROVIDER", "anthropic")

	cfg, err := LoadFromEnv("test")
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Retrieval.RelevanceThreshold)
	assert.Equal(t, 5, cfg.Optimizer.MaxIterations)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestLoadFromEnv_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero threshold step", "RETRIEVAL_THRESHOLD_STEP", "0"},
		{"floor above start", "RETRIEVAL_THRESHOLD_FLOOR", "0.9"},
		{"zero iterations", "OPTIMIZER_MAX_ITERATIONS", "0"},
		{"zero max turns", "CONTEXT_MAX_TURNS", "0"},
		{"unknown provider", "LLM_PROVIDER", "bard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv("test")
			assert.Error(t, err)
		})
	}
}

func TestEffectiveEmbeddingBaseURL(t *testing.T) {
	llm := LLMConfig{BaseURL: "http://llm.local/v1"}
	assert.Equal(t, "http://llm.local/v1", llm.EffectiveEmbeddingBaseURL())

	llm.EmbeddingBaseURL = "http://embed.local/v1"
	assert.Equal(t, "http://embed.local/v1", llm.EffectiveEmbeddingBaseURL())
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "qf", Password: "secret",
		Database: "engine", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=qf password=secret dbname=engine sslmode=disable",
		db.ConnectionString())
}
