package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tessera-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

// vocabEmbedder is a deterministic embedder for tests: each dimension counts
// occurrences of one vocabulary word.
type vocabEmbedder struct {
	vocab []string
	name  string
}

func newVocabEmbedder(vocab ...string) *vocabEmbedder {
	return &vocabEmbedder{vocab: vocab}
}

func (e *vocabEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(text))
	vec := make([]float32, len(e.vocab))
	for i, term := range e.vocab {
		for _, w := range words {
			if strings.Trim(w, ".,!?:;\"'()") == term {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *vocabEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *vocabEmbedder) Dimensions() int { return len(e.vocab) }

func (e *vocabEmbedder) ModelName() string {
	if e.name != "" {
		return e.name
	}
	return "vocab-test"
}

func (e *vocabEmbedder) Close() error { return nil }

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend down")
}

func (failingEmbedder) Dimensions() int { return 0 }

func (failingEmbedder) ModelName() string { return "failing" }

func (failingEmbedder) Close() error { return nil }

// failingKeywordIndex errors on search.
type failingKeywordIndex struct{}

func (failingKeywordIndex) Index(context.Context, domain.Passage) error { return nil }

func (failingKeywordIndex) Search(context.Context, string, int) ([]driven.KeywordHit, error) {
	return nil, errors.New("keyword index down")
}

func (failingKeywordIndex) DeleteSource(context.Context, string) error { return nil }

func (failingKeywordIndex) Close() error { return nil }

// stubLLM returns canned completions and rewrites.
type stubLLM struct {
	answer      string
	rewritten   string
	generateErr error
	rewriteErr  error

	lastPrompt string
	lastOpts   driven.GenerateOptions
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	s.lastPrompt = prompt
	s.lastOpts = opts
	if s.generateErr != nil {
		return "", s.generateErr
	}
	return s.answer, nil
}

func (s *stubLLM) RewriteQuery(_ context.Context, query string, _ []string) (string, error) {
	if s.rewriteErr != nil {
		return "", s.rewriteErr
	}
	if s.rewritten != "" {
		return s.rewritten, nil
	}
	return query, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

func (s *stubLLM) Close() error { return nil }

// countingDocStore wraps a store and counts GetDocument calls per source.
type countingDocStore struct {
	driven.DocumentStore
	getDocumentCalls map[string]int
}

func newCountingDocStore(inner driven.DocumentStore) *countingDocStore {
	return &countingDocStore{
		DocumentStore:    inner,
		getDocumentCalls: make(map[string]int),
	}
}

func (c *countingDocStore) GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error) {
	c.getDocumentCalls[sourceID]++
	return c.DocumentStore.GetDocument(ctx, sourceID)
}

// seedDocument saves a document with one passage per given text.
func seedDocument(ctx context.Context, store *memory.DocumentStore, doc *domain.SourceDocument, texts ...string) error {
	if err := store.SaveDocument(ctx, doc); err != nil {
		return err
	}
	passages := make([]domain.Passage, len(texts))
	for i, text := range texts {
		passages[i] = domain.Passage{
			ID:         domain.PassageID(doc.SourceID, i),
			SourceID:   doc.SourceID,
			SourceType: doc.SourceType,
			Text:       text,
			Offset:     i,
			TokenCount: len(strings.Fields(text)),
		}
	}
	return store.ReplacePassages(ctx, doc.SourceID, passages)
}
