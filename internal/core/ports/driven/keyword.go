package driven

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// KeywordIndex answers term-match queries over passage text using
// idf-weighted scoring (BM25).
type KeywordIndex interface {
	// Index adds or updates a passage in the keyword index.
	Index(ctx context.Context, passage domain.Passage) error

	// Search scores passages against the query terms and returns up to k
	// hits, best first. Passages matching no term are not returned.
	Search(ctx context.Context, query string, k int) ([]KeywordHit, error)

	// DeleteSource removes all passages belonging to a document.
	DeleteSource(ctx context.Context, sourceID string) error

	// Close releases resources.
	Close() error
}

// KeywordHit is a keyword search result.
type KeywordHit struct {
	// PassageID is the matched passage.
	PassageID string

	// Score is the relevance score (BM25).
	Score float64
}
