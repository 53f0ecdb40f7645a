package domain

import (
	"fmt"
	"time"
)

// SourceType identifies the kind of material a document came from.
type SourceType string

const (
	// SourceTypePaper is an academic paper (e.g. arXiv).
	SourceTypePaper SourceType = "paper"
	// SourceTypeRepository is a code repository (e.g. GitHub).
	SourceTypeRepository SourceType = "repository"
	// SourceTypeArticle is an encyclopedia article (e.g. Wikipedia).
	SourceTypeArticle SourceType = "article"
	// SourceTypeUpload is a user-supplied document.
	SourceTypeUpload SourceType = "upload"
)

// Valid reports whether the source type is one of the known kinds.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypePaper, SourceTypeRepository, SourceTypeArticle, SourceTypeUpload:
		return true
	}
	return false
}

// SourceDocument is the canonical metadata for an indexed document.
// It is immutable once indexed; re-indexing the same SourceID replaces the
// document's passage set atomically.
type SourceDocument struct {
	// SourceID is the unique identifier of the owning document.
	SourceID string

	// Title is the human-readable title.
	Title string

	// Authors is the ordered author list.
	Authors []string

	// URL is the original location, if any.
	URL string

	// PublishedAt is the publication date. Nil when unknown; citation
	// formatting falls back to a dateless form.
	PublishedAt *time.Time

	// SourceType classifies the document.
	SourceType SourceType

	// Seq is the store-assigned insertion sequence. It is stable across
	// re-indexing and is used for deterministic result ordering.
	Seq int64

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-indexed.
	UpdatedAt time.Time
}

// Validate checks the fields indexing requires.
func (d SourceDocument) Validate() error {
	if d.SourceID == "" {
		return fmt.Errorf("%w: missing source id", ErrMalformedDocument)
	}
	if !d.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source type %q", ErrMalformedDocument, d.SourceType)
	}
	return nil
}

// Passage is the unit of retrieval: a bounded window of document text.
// Passages from the same document preserve source order via Offset.
type Passage struct {
	// ID is deterministic, derived from (SourceID, Offset),
	// so re-processing a document yields identical ids.
	ID string

	// SourceID links back to the owning document.
	SourceID string

	// SourceType mirrors the owning document's type.
	SourceType SourceType

	// Text is the passage content. Its length is bounded by the configured
	// chunking window.
	Text string

	// Offset is the ordinal position within the source document.
	Offset int

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// Embedding is the vector representation, populated on the write path.
	Embedding []float32
}

// PassageID derives the deterministic passage id for a document offset.
func PassageID(sourceID string, offset int) string {
	return fmt.Sprintf("%s_p%d", sourceID, offset)
}
