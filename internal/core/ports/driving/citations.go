package driving

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// CitationService formats source citations for retrieved passages.
type CitationService interface {
	// Cite returns one formatted citation per distinct source among the
	// given passages, in order of first appearance.
	Cite(ctx context.Context, passageIDs []string, style domain.CitationStyle) ([]string, error)

	// Bibliography joins the citations for the given passages into a single
	// bibliography block.
	Bibliography(ctx context.Context, passageIDs []string, style domain.CitationStyle) (string, error)

	// Invalidate drops cached citation strings for a source. Called when the
	// source is re-indexed.
	Invalidate(sourceID string)
}
