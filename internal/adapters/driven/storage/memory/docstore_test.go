package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-labs/recall/internal/core/domain"
)

func testDocument(sourceID string) *domain.SourceDocument {
	return &domain.SourceDocument{
		SourceID:   sourceID,
		Title:      "Test Document",
		SourceType: domain.SourceTypeUpload,
	}
}

func TestDocumentStore_SeqAssignment(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	a := testDocument("a")
	b := testDocument("b")
	require.NoError(t, store.SaveDocument(ctx, a))
	require.NoError(t, store.SaveDocument(ctx, b))
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)

	// Re-save keeps the original seq.
	again := testDocument("a")
	require.NoError(t, store.SaveDocument(ctx, again))
	assert.Equal(t, int64(1), again.Seq)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].SourceID)
	assert.Equal(t, "b", docs[1].SourceID)
}

func TestDocumentStore_EmbeddingModelRoundTrip(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	model, err := store.EmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Empty(t, model)

	require.NoError(t, store.SetEmbeddingModel(ctx, "nomic-embed-text"))
	model, err = store.EmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", model)

	require.NoError(t, store.SetEmbeddingModel(ctx, "text-embedding-3-small"))
	model, err = store.EmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", model)
}

func TestDocumentStore_ValidateOnSave(t *testing.T) {
	store := NewDocumentStore()
	err := store.SaveDocument(context.Background(), &domain.SourceDocument{SourceID: "x"})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestDocumentStore_PassageLifecycle(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, store.ReplacePassages(ctx, "doc1", []domain.Passage{
		{ID: "doc1_p1", SourceID: "doc1", Text: "second", Offset: 1},
		{ID: "doc1_p0", SourceID: "doc1", Text: "first", Offset: 0},
	}))

	got, err := store.ListPassages(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc1_p0", got[0].ID)
	assert.Equal(t, "doc1_p1", got[1].ID)

	p, err := store.GetPassage(ctx, "doc1_p1")
	require.NoError(t, err)
	assert.Equal(t, "second", p.Text)

	require.NoError(t, store.ReplacePassages(ctx, "doc1", nil))
	_, err = store.GetPassage(ctx, "doc1_p0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, store.ReplacePassages(ctx, "doc1", []domain.Passage{
		{ID: "doc1_p0", SourceID: "doc1", Text: "body"},
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc1"))
	_, err := store.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetPassage(ctx, "doc1_p0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
