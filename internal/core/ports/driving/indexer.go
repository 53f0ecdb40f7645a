package driving

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// IndexerService is the write path: it turns raw documents into indexed
// passages.
type IndexerService interface {
	// IndexDocument chunks, embeds and indexes a document, atomically
	// replacing any previously indexed passage set for the same source id.
	// Returns the number of passages indexed.
	IndexDocument(ctx context.Context, doc domain.SourceDocument, body string) (int, error)

	// DeleteSource removes a document from the store and both indexes.
	DeleteSource(ctx context.Context, sourceID string) error

	// Warm rebuilds the in-memory indexes from the durable store, restoring
	// identical ranked results after a restart.
	Warm(ctx context.Context) error
}
