package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-labs/recall/internal/adapters/driven/index/keyword"
	"github.com/tessera-labs/recall/internal/adapters/driven/index/vector"
	"github.com/tessera-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/processor"
)

type indexerFixture struct {
	indexer *Indexer
	docs    *memory.DocumentStore
	vector  *vector.Index
	keyword *keyword.Index
}

func newIndexerFixture(embedder driven.EmbeddingService) *indexerFixture {
	docs := memory.NewDocumentStore()
	vec := vector.New()
	kw := keyword.New()
	tracker := NewCitationTracker(docs)
	return &indexerFixture{
		indexer: NewIndexer(processor.New(processor.WithWindowTokens(12)), embedder, docs, vec, kw, tracker),
		docs:    docs,
		vector:  vec,
		keyword: kw,
	}
}

func paperDoc(sourceID, title string) domain.SourceDocument {
	return domain.SourceDocument{
		SourceID:   sourceID,
		Title:      title,
		Authors:    []string{"Vaswani"},
		SourceType: domain.SourceTypePaper,
	}
}

func TestIndexer_IndexDocument(t *testing.T) {
	fx := newIndexerFixture(newVocabEmbedder("attention", "recurrence", "convolution"))
	ctx := context.Background()

	body := "The transformer relies entirely on attention, dispensing with recurrence and convolution. " +
		"Attention lets the model relate positions directly regardless of distance."
	n, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Attention Is All You Need"), body)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	// Durable store holds the passages with embeddings.
	passages, err := fx.docs.ListPassages(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, passages, n)
	for _, p := range passages {
		assert.Len(t, p.Embedding, 3)
	}

	// Both indexes answer for the new passages.
	kwHits, err := fx.keyword.Search(ctx, "attention", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, kwHits)

	vecHits, err := fx.vector.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, vecHits)
}

func TestIndexer_ReindexIsIdempotent(t *testing.T) {
	fx := newIndexerFixture(newVocabEmbedder("attention"))
	ctx := context.Background()
	doc := paperDoc("doc1", "Attention Is All You Need")
	body := "attention attention attention networks and more attention in deep models"

	n1, err := fx.indexer.IndexDocument(ctx, doc, body)
	require.NoError(t, err)
	n2, err := fx.indexer.IndexDocument(ctx, doc, body)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	passages, err := fx.docs.ListPassages(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, passages, n1)

	hits, err := fx.keyword.Search(ctx, "attention", 50)
	require.NoError(t, err)
	assert.Len(t, hits, n1, "no stale passages survive a re-index")
}

func TestIndexer_ReindexDropsStalePassages(t *testing.T) {
	fx := newIndexerFixture(newVocabEmbedder("attention"))
	ctx := context.Background()
	doc := paperDoc("doc1", "Attention Is All You Need")

	longBody := "one two three four five six seven eight nine ten eleven twelve " +
		"thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty attention"
	n1, err := fx.indexer.IndexDocument(ctx, doc, longBody)
	require.NoError(t, err)
	require.Greater(t, n1, 1)

	n2, err := fx.indexer.IndexDocument(ctx, doc, "short attention body")
	require.NoError(t, err)
	require.Less(t, n2, n1)

	hits, err := fx.keyword.Search(ctx, "attention", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndexer_EmbeddingFailureAborts(t *testing.T) {
	fx := newIndexerFixture(failingEmbedder{})
	ctx := context.Background()

	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Title"), "some body text")
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	// Nothing was committed.
	_, err = fx.docs.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexer_NilEmbedderKeywordOnly(t *testing.T) {
	fx := newIndexerFixture(nil)
	ctx := context.Background()

	n, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Title"), "plain keyword body")
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	kwHits, err := fx.keyword.Search(ctx, "keyword", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, kwHits)

	vecHits, err := fx.vector.Search(ctx, []float32{1}, 10)
	require.NoError(t, err)
	assert.Empty(t, vecHits)
}

func TestIndexer_MalformedDocument(t *testing.T) {
	fx := newIndexerFixture(nil)
	ctx := context.Background()

	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Title"), "   ")
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)

	_, err = fx.indexer.IndexDocument(ctx, domain.SourceDocument{SourceID: "doc2"}, "body")
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestIndexer_DeleteSource(t *testing.T) {
	fx := newIndexerFixture(newVocabEmbedder("attention"))
	ctx := context.Background()

	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Title"), "attention mechanisms explained")
	require.NoError(t, err)

	require.NoError(t, fx.indexer.DeleteSource(ctx, "doc1"))

	_, err = fx.docs.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	kwHits, err := fx.keyword.Search(ctx, "attention", 10)
	require.NoError(t, err)
	assert.Empty(t, kwHits)

	vecHits, err := fx.vector.Search(ctx, []float32{1}, 10)
	require.NoError(t, err)
	assert.Empty(t, vecHits)
}

func TestIndexer_WarmRestoresIndexes(t *testing.T) {
	embedder := newVocabEmbedder("attention", "memory")
	fx := newIndexerFixture(embedder)
	ctx := context.Background()

	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Attention"), "attention layers everywhere")
	require.NoError(t, err)
	_, err = fx.indexer.IndexDocument(ctx, paperDoc("doc2", "Memory"), "memory networks remember")
	require.NoError(t, err)

	wantKw, err := fx.keyword.Search(ctx, "attention memory", 10)
	require.NoError(t, err)
	wantVec, err := fx.vector.Search(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)

	// Fresh indexes, same store: Warm must reproduce the rankings.
	freshVec := vector.New()
	freshKw := keyword.New()
	rebuilt := NewIndexer(processor.New(), embedder, fx.docs, freshVec, freshKw, NewCitationTracker(fx.docs))
	require.NoError(t, rebuilt.Warm(ctx))

	gotKw, err := freshKw.Search(ctx, "attention memory", 10)
	require.NoError(t, err)
	assert.Equal(t, wantKw, gotKw)

	gotVec, err := freshVec.Search(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, wantVec, gotVec)
}

func TestIndexer_WarmReembedsAfterModelChange(t *testing.T) {
	ctx := context.Background()

	v1 := &vocabEmbedder{vocab: []string{"attention", "memory"}, name: "vocab-v1"}
	fx := newIndexerFixture(v1)
	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Attention"), "attention layers everywhere")
	require.NoError(t, err)

	recorded, err := fx.docs.EmbeddingModel(ctx)
	require.NoError(t, err)
	require.Equal(t, "vocab-v1", recorded)

	// Restart against the same store with a different embedding model.
	v2 := &vocabEmbedder{vocab: []string{"attention", "memory", "layers"}, name: "vocab-v2"}
	freshVec := vector.New()
	freshKw := keyword.New()
	rebuilt := NewIndexer(processor.New(), v2, fx.docs, freshVec, freshKw, NewCitationTracker(fx.docs))
	require.NoError(t, rebuilt.Warm(ctx))

	// Stored embeddings were replaced with the new model's.
	passages, err := fx.docs.ListPassages(ctx, "doc1")
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	for _, p := range passages {
		assert.Len(t, p.Embedding, 3)
	}
	recorded, err = fx.docs.EmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vocab-v2", recorded)

	// The semantic side answers with full fidelity after the swap.
	retriever := NewRetriever(v2, freshVec, freshKw, fx.docs)
	set, err := retriever.Retrieve(ctx, "attention", domain.RetrievalOptions{K: 5})
	require.NoError(t, err)
	assert.False(t, set.Degraded)
	require.NotEmpty(t, set.Results)
	assert.True(t, set.Results[0].FromSemantic)
	assert.Greater(t, set.Results[0].SemanticScore, 0.0)
}

func TestIndexer_WarmFailsWhenReembedFails(t *testing.T) {
	ctx := context.Background()

	v1 := &vocabEmbedder{vocab: []string{"attention"}, name: "vocab-v1"}
	fx := newIndexerFixture(v1)
	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Attention"), "attention layers everywhere")
	require.NoError(t, err)

	// Model changed but the new backend cannot embed: Warm must surface the
	// failure rather than rebuild from vectors of the old model.
	rebuilt := NewIndexer(processor.New(), failingEmbedder{}, fx.docs, vector.New(), keyword.New(), NewCitationTracker(fx.docs))
	err = rebuilt.Warm(ctx)
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIndexer_WarmSameModelKeepsStoredEmbeddings(t *testing.T) {
	ctx := context.Background()

	v1 := &vocabEmbedder{vocab: []string{"attention", "memory"}, name: "vocab-v1"}
	fx := newIndexerFixture(v1)
	_, err := fx.indexer.IndexDocument(ctx, paperDoc("doc1", "Attention"), "attention layers everywhere")
	require.NoError(t, err)

	before, err := fx.docs.ListPassages(ctx, "doc1")
	require.NoError(t, err)

	same := &vocabEmbedder{vocab: []string{"attention", "memory"}, name: "vocab-v1"}
	rebuilt := NewIndexer(processor.New(), same, fx.docs, vector.New(), keyword.New(), NewCitationTracker(fx.docs))
	require.NoError(t, rebuilt.Warm(ctx))

	after, err := fx.docs.ListPassages(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
