// Package llm provides chat-completion and embedding clients for the engine.
package llm

import (
	"context"
)

// LLMClient defines the interface for chat-completion operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// EmbeddingClient defines the interface for embedding operations.
// Embeddings are always served by an OpenAI-compatible endpoint, regardless
// of which provider handles chat completions.
type EmbeddingClient interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Ensure implementations satisfy the interfaces at compile time.
var (
	_ LLMClient       = (*Client)(nil)
	_ LLMClient       = (*AnthropicClient)(nil)
	_ EmbeddingClient = (*Client)(nil)
)
