package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/logger"
)

var _ driving.CitationService = (*CitationTracker)(nil)

type citationKey struct {
	sourceID string
	style    domain.CitationStyle
}

// CitationTracker formats bibliographic citations for retrieved passages.
// Formatted strings are memoised per source and style; re-indexing a source
// invalidates its cached entries.
type CitationTracker struct {
	docs driven.DocumentStore

	mu    sync.RWMutex
	cache map[citationKey]string
}

// NewCitationTracker creates a citation tracker backed by the given store.
func NewCitationTracker(docs driven.DocumentStore) *CitationTracker {
	return &CitationTracker{
		docs:  docs,
		cache: make(map[citationKey]string),
	}
}

// Cite returns one formatted citation per distinct source among the given
// passages, in order of first appearance. Unknown passages are skipped.
func (c *CitationTracker) Cite(ctx context.Context, passageIDs []string, style domain.CitationStyle) ([]string, error) {
	if style == "" {
		style = domain.StyleAPA
	}
	if !style.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedCitationStyle, style)
	}

	var citations []string
	seen := make(map[string]struct{})
	for _, passageID := range passageIDs {
		passage, err := c.docs.GetPassage(ctx, passageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("citation: passage %s not found, skipping", passageID)
				continue
			}
			return nil, fmt.Errorf("resolving passage %s: %w", passageID, err)
		}
		if _, ok := seen[passage.SourceID]; ok {
			continue
		}
		seen[passage.SourceID] = struct{}{}

		formatted, err := c.cite(ctx, passage.SourceID, style)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("citation: document %s not found, skipping", passage.SourceID)
				continue
			}
			return nil, err
		}
		citations = append(citations, formatted)
	}
	return citations, nil
}

// Bibliography joins the citations for the given passages into a single
// block, one citation per paragraph.
func (c *CitationTracker) Bibliography(ctx context.Context, passageIDs []string, style domain.CitationStyle) (string, error) {
	citations, err := c.Cite(ctx, passageIDs, style)
	if err != nil {
		return "", err
	}
	return strings.Join(citations, "\n\n"), nil
}

// Invalidate drops cached citation strings for a source.
func (c *CitationTracker) Invalidate(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, style := range []domain.CitationStyle{domain.StyleAPA, domain.StyleMLA, domain.StyleChicago} {
		delete(c.cache, citationKey{sourceID: sourceID, style: style})
	}
}

func (c *CitationTracker) cite(ctx context.Context, sourceID string, style domain.CitationStyle) (string, error) {
	key := citationKey{sourceID: sourceID, style: style}

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	doc, err := c.docs.GetDocument(ctx, sourceID)
	if err != nil {
		return "", err
	}

	var formatted string
	switch style {
	case domain.StyleMLA:
		formatted = formatMLA(doc)
	case domain.StyleChicago:
		formatted = formatChicago(doc)
	default:
		formatted = formatAPA(doc)
	}

	c.mu.Lock()
	c.cache[key] = formatted
	c.mu.Unlock()

	return formatted, nil
}

// ==================== Style Formatters ====================

// formatAPA renders "Authors (Year). Title. URL", omitting absent segments.
func formatAPA(doc *domain.SourceDocument) string {
	var b strings.Builder
	b.WriteString(authorsAPA(doc.Authors))
	if year := publicationYear(doc); year != "" {
		b.WriteString(" (" + year + ").")
	} else {
		b.WriteString(".")
	}
	b.WriteString(" " + doc.Title + ".")
	if doc.URL != "" {
		b.WriteString(" " + doc.URL)
	}
	return b.String()
}

// formatMLA renders `Authors "Title." Year. Web. URL`, omitting absent
// segments.
func formatMLA(doc *domain.SourceDocument) string {
	var b strings.Builder
	b.WriteString(authorsMLA(doc.Authors))
	b.WriteString(` "` + doc.Title + `."`)
	if year := publicationYear(doc); year != "" {
		b.WriteString(" " + year + ".")
	}
	if doc.URL != "" {
		b.WriteString(" Web. " + doc.URL)
	}
	return b.String()
}

// formatChicago renders `Authors "Title." (Year). URL`, omitting absent
// segments.
func formatChicago(doc *domain.SourceDocument) string {
	var b strings.Builder
	b.WriteString(authorsChicago(doc.Authors))
	b.WriteString(` "` + doc.Title + `."`)
	if year := publicationYear(doc); year != "" {
		b.WriteString(" (" + year + ").")
	}
	if doc.URL != "" {
		b.WriteString(" " + doc.URL)
	}
	return b.String()
}

// authorsAPA inverts the first author and lists up to 20 before "et al.".
func authorsAPA(authors []string) string {
	switch {
	case len(authors) == 0:
		return "Unknown"
	case len(authors) == 1:
		return lastnameFirst(authors[0])
	case len(authors) <= 20:
		parts := make([]string, 0, len(authors))
		parts = append(parts, lastnameFirst(authors[0]))
		for _, a := range authors[1:] {
			parts = append(parts, strings.TrimSpace(a))
		}
		return strings.Join(parts, ", ")
	default:
		return lastnameFirst(authors[0]) + ", et al."
	}
}

// authorsMLA inverts the first author and truncates past one.
func authorsMLA(authors []string) string {
	switch {
	case len(authors) == 0:
		return "Unknown"
	case len(authors) == 1:
		return lastnameFirst(authors[0])
	default:
		return lastnameFirst(authors[0]) + ", et al."
	}
}

// authorsChicago inverts the first author and lists up to three before
// "et al.".
func authorsChicago(authors []string) string {
	switch {
	case len(authors) == 0:
		return "Unknown"
	case len(authors) == 1:
		return lastnameFirst(authors[0])
	case len(authors) <= 3:
		parts := make([]string, 0, len(authors))
		parts = append(parts, lastnameFirst(authors[0]))
		for _, a := range authors[1:] {
			parts = append(parts, strings.TrimSpace(a))
		}
		return strings.Join(parts, ", ")
	default:
		return lastnameFirst(authors[0]) + ", et al."
	}
}

// lastnameFirst rewrites "First Last" as "Last, First". Single-word names
// pass through unchanged.
func lastnameFirst(name string) string {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) >= 2 {
		return parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
	}
	return strings.TrimSpace(name)
}

func publicationYear(doc *domain.SourceDocument) string {
	if doc.PublishedAt == nil {
		return ""
	}
	return strconv.Itoa(doc.PublishedAt.Year())
}
