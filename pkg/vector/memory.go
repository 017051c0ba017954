package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/queryforge/queryforge-engine/pkg/llm"
)

// MemoryStore is an in-process Store. Used by tests and single-node
// deployments that do not need persistence.
type MemoryStore struct {
	embedder llm.EmbeddingClient

	mu          sync.RWMutex
	collections map[string]map[string]memoryEntry
}

type memoryEntry struct {
	text   string
	vector []float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(embedder llm.EmbeddingClient) *MemoryStore {
	return &MemoryStore{
		embedder:    embedder,
		collections: make(map[string]map[string]memoryEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

// Save embeds text and stores it under (collection, id), replacing any
// previous entry.
func (s *MemoryStore) Save(ctx context.Context, collection, id, text string) error {
	vec, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]memoryEntry)
		s.collections[collection] = coll
	}
	coll[id] = memoryEntry{text: text, vector: vec}

	return nil
}

// Search embeds the query and ranks all entries in the collection by cosine
// similarity.
func (s *MemoryStore) Search(ctx context.Context, collection, query string, limit int, minScore float64) ([]Match, error) {
	queryVec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for id, entry := range s.collections[collection] {
		matches = append(matches, Match{
			ID:    id,
			Text:  entry.text,
			Score: CosineSimilarity(queryVec, entry.vector),
		})
	}

	return rankMatches(matches, limit, minScore), nil
}

// Delete removes one entry.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coll, ok := s.collections[collection]; ok {
		delete(coll, id)
	}
	return nil
}

// DeleteCollection removes a whole collection.
func (s *MemoryStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}
