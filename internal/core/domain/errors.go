package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedDocument indicates a document cannot be indexed because its
	// text is empty or required metadata (source id, source type) is missing.
	// No partial write is committed when this is returned.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnsupportedCitationStyle indicates an unknown citation style.
	// Recoverable by choosing a supported style.
	ErrUnsupportedCitationStyle = errors.New("unsupported citation style")

	// ErrIndexUnavailable indicates a sub-index is not configured or failed.
	// Retrieval degrades to single-index ranking where possible.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationFailed indicates the external completion service failed.
	// Retrieval and citation results already computed remain valid.
	ErrGenerationFailed = errors.New("generation failed")
)
