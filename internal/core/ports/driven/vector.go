package driven

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// VectorIndex answers nearest-neighbour similarity queries over passage
// embeddings.
type VectorIndex interface {
	// Index inserts or replaces the vector for a passage. The passage's
	// Embedding field must be populated.
	Index(ctx context.Context, passage domain.Passage) error

	// Search finds the k most similar passages to the query vector.
	// Similarity values are non-increasing in the returned order; ties are
	// broken by insertion order. Never returns more than k hits.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// DeleteSource removes all passages belonging to a document.
	DeleteSource(ctx context.Context, sourceID string) error

	// Close releases resources.
	Close() error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// PassageID is the matched passage.
	PassageID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
