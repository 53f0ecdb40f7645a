// Package processor splits raw documents into overlapping passages with
// stable, content-derived identifiers.
package processor

import (
	"fmt"
	"strings"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// DefaultWindowTokens is the default passage size in tokens.
const DefaultWindowTokens = 200

// DefaultOverlapFraction is the default share of a window repeated at the
// start of the next one, so answers spanning a boundary stay retrievable.
const DefaultOverlapFraction = 0.15

// Processor splits document text into token windows.
type Processor struct {
	windowTokens int
	overlap      float64
}

// Option configures the processor.
type Option func(*Processor)

// WithWindowTokens sets the passage size in tokens.
func WithWindowTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.windowTokens = n
		}
	}
}

// WithOverlapFraction sets the overlap between consecutive passages as a
// fraction of the window size.
func WithOverlapFraction(f float64) Option {
	return func(p *Processor) {
		if f >= 0 {
			p.overlap = f
		}
	}
}

// New creates a processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		windowTokens: DefaultWindowTokens,
		overlap:      DefaultOverlapFraction,
	}
	for _, opt := range opts {
		opt(p)
	}
	// An overlap at or beyond half the window would stop the window from
	// advancing meaningfully.
	if p.overlap >= 0.5 {
		p.overlap = 0.25
	}
	return p
}

// Process splits a document body into passages. Passage ids derive from
// (source id, offset), so re-processing the same document yields identical
// ids. Returns domain.ErrMalformedDocument for empty text or missing
// metadata.
func (p *Processor) Process(doc domain.SourceDocument, body string) ([]domain.Passage, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty text (source %s)", domain.ErrMalformedDocument, doc.SourceID)
	}

	tokens := strings.Fields(ComposeText(doc, body))
	overlapTokens := int(float64(p.windowTokens) * p.overlap)

	var passages []domain.Passage
	var window []string
	carried := 0 // tokens carried over from the previous flush

	emit := func(toks []string) {
		passages = append(passages, p.passage(doc, len(passages), toks))
	}

	for _, tok := range tokens {
		window = append(window, tok)
		for len(window) >= p.windowTokens {
			emit(window[:p.windowTokens])
			tail := make([]string, overlapTokens, len(window))
			copy(tail, window[p.windowTokens-overlapTokens:p.windowTokens])
			window = append(tail, window[p.windowTokens:]...)
			carried = overlapTokens
		}
	}

	// The remainder is only worth a passage if it holds tokens the previous
	// window did not already cover.
	if len(window) > carried {
		emit(window)
	}

	return passages, nil
}

func (p *Processor) passage(doc domain.SourceDocument, offset int, tokens []string) domain.Passage {
	return domain.Passage{
		ID:         domain.PassageID(doc.SourceID, offset),
		SourceID:   doc.SourceID,
		SourceType: doc.SourceType,
		Text:       strings.Join(tokens, " "),
		Offset:     offset,
		TokenCount: len(tokens),
	}
}

// ComposeText builds the canonical indexable text for a document: title and
// author metadata prefixed to the body so they participate in retrieval.
func ComposeText(doc domain.SourceDocument, body string) string {
	var b strings.Builder
	if doc.Title != "" {
		b.WriteString("Title: ")
		b.WriteString(doc.Title)
		b.WriteString("\n\n")
	}
	if len(doc.Authors) > 0 {
		b.WriteString("Authors: ")
		b.WriteString(strings.Join(doc.Authors, ", "))
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	return b.String()
}
