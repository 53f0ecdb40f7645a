package driving

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// AskOptions configures one orchestrated question.
type AskOptions struct {
	// Retrieval configures the hybrid retrieval step.
	Retrieval domain.RetrievalOptions

	// Style selects the citation format. Empty means APA.
	Style domain.CitationStyle

	// ContextTurns bounds how many prior turns feed the query context.
	// Zero means the service default.
	ContextTurns int

	// MaxTokens caps the completion length when Generate is used. Zero
	// leaves it to the completion service.
	MaxTokens int

	// Temperature controls completion randomness when Generate is used.
	// Zero leaves it to the completion service.
	Temperature float64
}

// AssistantService is the top-level entry point composing retrieval, citation
// tracking and conversation memory into one "answer this question" flow.
// It prepares and consumes context bundles; the completion call itself
// belongs to the external caller unless Generate is used.
type AssistantService interface {
	// Ask assembles the context bundle for a question: prior turns, ranked
	// evidence and citations. It does not modify conversation memory.
	Ask(ctx context.Context, sessionID, query string, opts AskOptions) (*domain.AnswerBundle, error)

	// RecordAnswer commits a completed turn once the external caller has the
	// generated answer.
	RecordAnswer(ctx context.Context, sessionID, query, answer string, passageIDs []string) error

	// Generate runs Ask, calls the configured completion service and records
	// the turn. On completion failure the bundle is still returned alongside
	// an error matching domain.ErrGenerationFailed, and nothing is recorded.
	Generate(ctx context.Context, sessionID, query string, opts AskOptions) (*domain.AnswerBundle, string, error)
}
