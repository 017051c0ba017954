package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/config"
)

// NewFromConfig builds the chat client for the configured provider plus an
// embedding client. Embeddings always go through the OpenAI-compatible
// endpoint; Anthropic does not serve embeddings.
func NewFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, EmbeddingClient, error) {
	embedder, err := NewClient(&Config{
		Endpoint:       cfg.EffectiveEmbeddingBaseURL(),
		Model:          cfg.EmbeddingModel,
		APIKey:         cfg.APIKey,
		EmbeddingModel: cfg.EmbeddingModel,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding client: %w", err)
	}

	switch cfg.Provider {
	case "openai":
		chat, err := NewClient(&Config{
			Endpoint:       cfg.BaseURL,
			Model:          cfg.Model,
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.EmbeddingModel,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create chat client: %w", err)
		}
		return chat, embedder, nil

	case "anthropic":
		chat, err := NewAnthropicClient(&Config{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create chat client: %w", err)
		}
		return chat, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
