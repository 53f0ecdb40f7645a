package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, semantic search is disabled.
//
// Note: this is separate from VectorIndex, which stores and searches
// vectors. EmbeddingService generates them.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI-compatible servers (text-embedding-3-small, ...)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// Must be deterministic for identical input within one index generation.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 384, 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	// A model change invalidates cached embeddings; callers should re-index.
	ModelName() string

	// Close releases resources.
	Close() error
}
