// Package memory provides in-memory implementations of the storage ports,
// used in tests and for ephemeral runs without a database file.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory document store.
type DocumentStore struct {
	mu             sync.RWMutex
	docs           map[string]*domain.SourceDocument
	passages       map[string]map[string]*domain.Passage // sourceID -> passage id -> passage
	nextSeq        int64
	embeddingModel string
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:     make(map[string]*domain.SourceDocument),
		passages: make(map[string]map[string]*domain.Passage),
	}
}

// SaveDocument stores or updates a document, assigning Seq on first save.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.SourceDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.docs[doc.SourceID]; ok {
		doc.Seq = existing.Seq
		doc.CreatedAt = existing.CreatedAt
	} else {
		s.nextSeq++
		doc.Seq = s.nextSeq
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
	}
	doc.UpdatedAt = now

	stored := *doc
	stored.Authors = append([]string(nil), doc.Authors...)
	s.docs[doc.SourceID] = &stored
	return nil
}

// GetDocument retrieves a document by source id.
func (s *DocumentStore) GetDocument(_ context.Context, sourceID string) (*domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *doc
	return &out, nil
}

// ListDocuments returns all documents in insertion order.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.SourceDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs, nil
}

// ReplacePassages atomically replaces the passage set of a document.
func (s *DocumentStore) ReplacePassages(_ context.Context, sourceID string, passages []domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]*domain.Passage, len(passages))
	for _, p := range passages {
		stored := p
		stored.Embedding = append([]float32(nil), p.Embedding...)
		set[p.ID] = &stored
	}
	s.passages[sourceID] = set
	return nil
}

// GetPassage retrieves a passage by id.
func (s *DocumentStore) GetPassage(_ context.Context, id string) (*domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range s.passages {
		if p, ok := set[id]; ok {
			out := *p
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListPassages returns a document's passages in offset order.
func (s *DocumentStore) ListPassages(_ context.Context, sourceID string) ([]domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.passages[sourceID]
	passages := make([]domain.Passage, 0, len(set))
	for _, p := range set {
		passages = append(passages, *p)
	}
	sort.Slice(passages, func(i, j int) bool { return passages[i].Offset < passages[j].Offset })
	return passages, nil
}

// DeleteDocument removes a document and its passages.
func (s *DocumentStore) DeleteDocument(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, sourceID)
	delete(s.passages, sourceID)
	return nil
}

// EmbeddingModel returns the recorded embedding model name, or "" when none
// has been set.
func (s *DocumentStore) EmbeddingModel(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingModel, nil
}

// SetEmbeddingModel records the embedding model that produced the stored
// embeddings.
func (s *DocumentStore) SetEmbeddingModel(_ context.Context, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingModel = model
	return nil
}
