package driving

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// RetrieverService provides hybrid retrieval over both indexes.
type RetrieverService interface {
	// Retrieve fuses semantic and keyword rankings for a query.
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalSet, error)
}
