package processor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-labs/recall/internal/core/domain"
)

func testDoc() domain.SourceDocument {
	return domain.SourceDocument{
		SourceID:   "doc1",
		SourceType: domain.SourceTypePaper,
	}
}

// numberedBody builds a body of n distinct tokens "t00 t01 ...".
func numberedBody(n int) string {
	toks := make([]string, n)
	for i := range toks {
		toks[i] = fmt.Sprintf("t%02d", i)
	}
	return strings.Join(toks, " ")
}

func TestProcessSingleWindow(t *testing.T) {
	p := New(WithWindowTokens(10), WithOverlapFraction(0.2))

	passages, err := p.Process(testDoc(), numberedBody(10))
	require.NoError(t, err)
	require.Len(t, passages, 1)

	assert.Equal(t, "doc1_p0", passages[0].ID)
	assert.Equal(t, "doc1", passages[0].SourceID)
	assert.Equal(t, domain.SourceTypePaper, passages[0].SourceType)
	assert.Equal(t, 0, passages[0].Offset)
	assert.Equal(t, 10, passages[0].TokenCount)
	assert.Equal(t, numberedBody(10), passages[0].Text)
}

func TestProcessShortDocument(t *testing.T) {
	p := New(WithWindowTokens(10), WithOverlapFraction(0.2))

	passages, err := p.Process(testDoc(), numberedBody(4))
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, 4, passages[0].TokenCount)
}

func TestProcessOverlapCarriesTail(t *testing.T) {
	// 10-token window with 20% overlap: the second passage starts with the
	// last two tokens of the first.
	p := New(WithWindowTokens(10), WithOverlapFraction(0.2))

	passages, err := p.Process(testDoc(), numberedBody(11))
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, numberedBody(10), passages[0].Text)
	assert.Equal(t, "t08 t09 t10", passages[1].Text)
	assert.Equal(t, 1, passages[1].Offset)
	assert.Equal(t, "doc1_p1", passages[1].ID)
}

func TestProcessRemainderAllOverlapSkipped(t *testing.T) {
	// With exactly one full window the leftover tail is pure overlap and
	// produces no extra passage.
	p := New(WithWindowTokens(10), WithOverlapFraction(0.2))

	passages, err := p.Process(testDoc(), numberedBody(10))
	require.NoError(t, err)
	assert.Len(t, passages, 1)

	// One token past the tail is new content and earns a passage.
	passages, err = p.Process(testDoc(), numberedBody(11))
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestProcessZeroOverlap(t *testing.T) {
	p := New(WithWindowTokens(10), WithOverlapFraction(0))

	passages, err := p.Process(testDoc(), numberedBody(25))
	require.NoError(t, err)
	require.Len(t, passages, 3)

	assert.Equal(t, numberedBody(10), passages[0].Text)
	assert.Equal(t, "t00", strings.Fields(passages[0].Text)[0])
	assert.Equal(t, "t10", strings.Fields(passages[1].Text)[0])
	assert.Equal(t, "t20", strings.Fields(passages[2].Text)[0])
	assert.Equal(t, 5, passages[2].TokenCount)
}

func TestProcessDeterministicIDs(t *testing.T) {
	p := New(WithWindowTokens(8), WithOverlapFraction(0.25))
	body := numberedBody(30)

	first, err := p.Process(testDoc(), body)
	require.NoError(t, err)
	second, err := p.Process(testDoc(), body)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i, ps := range first {
		assert.Equal(t, fmt.Sprintf("doc1_p%d", i), ps.ID)
		assert.Equal(t, i, ps.Offset)
	}
}

func TestProcessComposesMetadata(t *testing.T) {
	doc := testDoc()
	doc.Title = "Attention Is All You Need"
	doc.Authors = []string{"Vaswani", "Shazeer"}

	p := New(WithWindowTokens(50), WithOverlapFraction(0))
	passages, err := p.Process(doc, "the transformer architecture")
	require.NoError(t, err)
	require.Len(t, passages, 1)

	assert.Contains(t, passages[0].Text, "Title: Attention Is All You Need")
	assert.Contains(t, passages[0].Text, "Authors: Vaswani, Shazeer")
	assert.Contains(t, passages[0].Text, "the transformer architecture")
}

func TestComposeTextWithoutMetadata(t *testing.T) {
	assert.Equal(t, "plain body", ComposeText(testDoc(), "plain body"))
}

func TestProcessMalformed(t *testing.T) {
	p := New()

	_, err := p.Process(testDoc(), "   \n\t ")
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)

	noID := testDoc()
	noID.SourceID = ""
	_, err = p.Process(noID, "some text")
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)

	badType := testDoc()
	badType.SourceType = "scroll"
	_, err = p.Process(badType, "some text")
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestNewClampsExcessiveOverlap(t *testing.T) {
	p := New(WithWindowTokens(10), WithOverlapFraction(0.9))

	// A runaway overlap would make the window stall. The clamped value
	// still advances: 30 tokens at stride 8 yields 4 passages, the last
	// holding the 2-token remainder plus carried overlap.
	passages, err := p.Process(testDoc(), numberedBody(30))
	require.NoError(t, err)
	assert.Len(t, passages, 4)
}
