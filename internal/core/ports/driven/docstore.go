package driven

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// DocumentStore persists source documents and their passages. It is the
// durable system of record: the in-memory indexes rebuild from it after a
// restart.
type DocumentStore interface {
	// SaveDocument stores or updates a document. The store assigns Seq on
	// first save and preserves it on re-index.
	SaveDocument(ctx context.Context, doc *domain.SourceDocument) error

	// GetDocument retrieves a document by source id.
	GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error)

	// ListDocuments returns all documents in insertion order.
	ListDocuments(ctx context.Context) ([]domain.SourceDocument, error)

	// ReplacePassages atomically replaces the passage set of a document.
	// Readers observe either the old set or the new set, never a mix.
	ReplacePassages(ctx context.Context, sourceID string, passages []domain.Passage) error

	// GetPassage retrieves a passage by id.
	GetPassage(ctx context.Context, id string) (*domain.Passage, error)

	// ListPassages returns a document's passages in offset order.
	ListPassages(ctx context.Context, sourceID string) ([]domain.Passage, error)

	// DeleteDocument removes a document and its passages.
	DeleteDocument(ctx context.Context, sourceID string) error

	// EmbeddingModel returns the model name the stored passage embeddings
	// were generated with, or "" when none has been recorded. Embeddings
	// from one model are meaningless to another, so a mismatch with the
	// active embedder means the stored vectors are stale.
	EmbeddingModel(ctx context.Context) (string, error)

	// SetEmbeddingModel records the model that produced the stored
	// embeddings.
	SetEmbeddingModel(ctx context.Context, model string) error
}
