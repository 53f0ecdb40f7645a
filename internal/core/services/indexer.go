package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/logger"
)

var _ driving.IndexerService = (*Indexer)(nil)

const (
	// embedBatchSize is how many passages go into one embedding request.
	embedBatchSize = 16

	// embedConcurrency bounds parallel embedding requests.
	embedConcurrency = 4
)

// DocumentProcessor turns a raw document body into passages.
type DocumentProcessor interface {
	Process(doc domain.SourceDocument, body string) ([]domain.Passage, error)
}

// Indexer is the write path: it chunks, embeds and indexes documents, and
// rebuilds the in-memory indexes from the durable store on startup.
type Indexer struct {
	processor DocumentProcessor
	embedder  driven.EmbeddingService // nil disables the vector side
	docs      driven.DocumentStore
	vector    driven.VectorIndex
	keyword   driven.KeywordIndex
	citations driving.CitationService

	locks *keyMutex
}

// NewIndexer creates an indexer. The embedder may be nil, in which case
// passages are indexed for keyword search only.
func NewIndexer(
	processor DocumentProcessor,
	embedder driven.EmbeddingService,
	docs driven.DocumentStore,
	vector driven.VectorIndex,
	keyword driven.KeywordIndex,
	citations driving.CitationService,
) *Indexer {
	return &Indexer{
		processor: processor,
		embedder:  embedder,
		docs:      docs,
		vector:    vector,
		keyword:   keyword,
		citations: citations,
		locks:     newKeyMutex(),
	}
}

// IndexDocument chunks, embeds and indexes a document, replacing any
// previously indexed passage set for the same source id. Returns the number
// of passages indexed.
func (s *Indexer) IndexDocument(ctx context.Context, doc domain.SourceDocument, body string) (int, error) {
	logger.Section("indexing " + doc.SourceID)

	passages, err := s.processor.Process(doc, body)
	if err != nil {
		return 0, fmt.Errorf("processing document %s: %w", doc.SourceID, err)
	}
	logger.Debug("indexer: %s produced %d passages", doc.SourceID, len(passages))

	if s.embedder != nil {
		if err := s.embedPassages(ctx, passages); err != nil {
			return 0, err
		}
	}

	unlock := s.locks.Lock(doc.SourceID)
	defer unlock()

	if err := s.docs.SaveDocument(ctx, &doc); err != nil {
		return 0, fmt.Errorf("saving document %s: %w", doc.SourceID, err)
	}
	if err := s.docs.ReplacePassages(ctx, doc.SourceID, passages); err != nil {
		return 0, fmt.Errorf("replacing passages for %s: %w", doc.SourceID, err)
	}

	if err := s.reindexSource(ctx, doc.SourceID, passages); err != nil {
		return 0, err
	}
	if s.embedder != nil {
		if err := s.docs.SetEmbeddingModel(ctx, s.embedder.ModelName()); err != nil {
			return 0, fmt.Errorf("recording embedding model: %w", err)
		}
	}

	if s.citations != nil {
		s.citations.Invalidate(doc.SourceID)
	}

	logger.Info("indexer: indexed %s (%d passages)", doc.SourceID, len(passages))
	return len(passages), nil
}

// DeleteSource removes a document from the store and both indexes.
func (s *Indexer) DeleteSource(ctx context.Context, sourceID string) error {
	unlock := s.locks.Lock(sourceID)
	defer unlock()

	if err := s.docs.DeleteDocument(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting document %s: %w", sourceID, err)
	}
	if err := s.vector.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting %s from vector index: %w", sourceID, err)
	}
	if err := s.keyword.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting %s from keyword index: %w", sourceID, err)
	}
	if s.citations != nil {
		s.citations.Invalidate(sourceID)
	}
	logger.Info("indexer: deleted %s", sourceID)
	return nil
}

// Warm rebuilds the in-memory indexes from the durable store. Documents are
// replayed in insertion order so tie-breaking matches the original indexing
// run. Stored embeddings produced by a different model than the active
// embedder are stale: those passages are re-embedded and persisted before
// indexing, so a model swap never serves vectors from the old model.
func (s *Indexer) Warm(ctx context.Context) error {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	stale, err := s.staleEmbeddings(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, doc := range docs {
		passages, err := s.docs.ListPassages(ctx, doc.SourceID)
		if err != nil {
			return fmt.Errorf("listing passages for %s: %w", doc.SourceID, err)
		}
		if stale {
			if err := s.embedPassages(ctx, passages); err != nil {
				return fmt.Errorf("re-embedding %s: %w", doc.SourceID, err)
			}
			if err := s.docs.ReplacePassages(ctx, doc.SourceID, passages); err != nil {
				return fmt.Errorf("replacing passages for %s: %w", doc.SourceID, err)
			}
		}
		if err := s.reindexSource(ctx, doc.SourceID, passages); err != nil {
			return err
		}
		total += len(passages)
	}

	if s.embedder != nil {
		if err := s.docs.SetEmbeddingModel(ctx, s.embedder.ModelName()); err != nil {
			return fmt.Errorf("recording embedding model: %w", err)
		}
	}

	logger.Info("indexer: warmed %d documents (%d passages)", len(docs), total)
	return nil
}

// staleEmbeddings reports whether the stored embeddings come from a
// different model than the active embedder.
func (s *Indexer) staleEmbeddings(ctx context.Context) (bool, error) {
	if s.embedder == nil {
		return false, nil
	}
	recorded, err := s.docs.EmbeddingModel(ctx)
	if err != nil {
		return false, fmt.Errorf("reading embedding model: %w", err)
	}
	if recorded == "" || recorded == s.embedder.ModelName() {
		return false, nil
	}
	logger.Warn("indexer: stored embeddings are from %s, active model is %s; re-embedding",
		recorded, s.embedder.ModelName())
	return true, nil
}

// reindexSource drops a source from both indexes and re-adds its passages.
func (s *Indexer) reindexSource(ctx context.Context, sourceID string, passages []domain.Passage) error {
	if err := s.vector.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("clearing %s from vector index: %w", sourceID, err)
	}
	if err := s.keyword.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("clearing %s from keyword index: %w", sourceID, err)
	}

	for _, p := range passages {
		if err := s.keyword.Index(ctx, p); err != nil {
			return fmt.Errorf("keyword indexing %s: %w", p.ID, err)
		}
		if len(p.Embedding) == 0 {
			continue
		}
		if err := s.vector.Index(ctx, p); err != nil {
			return fmt.Errorf("vector indexing %s: %w", p.ID, err)
		}
	}
	return nil
}

// embedPassages fills in passage embeddings in batches with bounded
// parallelism.
func (s *Indexer) embedPassages(ctx context.Context, passages []domain.Passage) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(passages); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, p := range batch {
				texts[i] = p.Text
			}
			vectors, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d passages",
					domain.ErrEmbeddingUnavailable, len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	return g.Wait()
}
