package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-labs/recall/internal/core/domain"
)

func passage(id, sourceID, text string) domain.Passage {
	return domain.Passage{ID: id, SourceID: sourceID, Text: text}
}

func TestIndex_SearchRanksByRelevance(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "attention mechanisms in transformer networks")))
	require.NoError(t, idx.Index(ctx, passage("doc1_p1", "doc1", "recurrent networks process sequences step by step")))
	require.NoError(t, idx.Index(ctx, passage("doc2_p0", "doc2", "attention attention everywhere in modern models")))

	hits, err := idx.Search(ctx, "attention", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "doc2_p0", hits[0].PassageID)
	assert.Equal(t, "doc1_p0", hits[1].PassageID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestIndex_SearchUnknownTermReturnsNothing(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "vector spaces and embeddings")))

	hits, err := idx.Search(ctx, "zymurgy", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_SearchStopwordsOnlyQuery(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "the quick brown fox")))

	hits, err := idx.Search(ctx, "the and of", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ReindexReplacesPostings(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "gradient descent optimisation")))
	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "bayesian inference methods")))

	hits, err := idx.Search(ctx, "gradient", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "bayesian", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1_p0", hits[0].PassageID)
}

func TestIndex_DeleteSource(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "neural architecture search")))
	require.NoError(t, idx.Index(ctx, passage("doc1_p1", "doc1", "neural network pruning")))
	require.NoError(t, idx.Index(ctx, passage("doc2_p0", "doc2", "neural machine translation")))

	require.NoError(t, idx.DeleteSource(ctx, "doc1"))

	hits, err := idx.Search(ctx, "neural", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc2_p0", hits[0].PassageID)
}

func TestIndex_TieBreakByInsertionOrder(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, passage("doc2_p0", "doc2", "sparse retrieval")))
	require.NoError(t, idx.Index(ctx, passage("doc1_p0", "doc1", "sparse retrieval")))

	hits, err := idx.Search(ctx, "sparse retrieval", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc2_p0", hits[0].PassageID)
	assert.Equal(t, "doc1_p0", hits[1].PassageID)
}

func TestIndex_SearchRespectsK(t *testing.T) {
	idx := New()
	ctx := context.Background()
	for _, id := range []string{"a_p0", "b_p0", "c_p0"} {
		require.NoError(t, idx.Index(ctx, passage(id, id[:1], "distributed consensus protocols")))
	}

	hits, err := idx.Search(ctx, "consensus", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
