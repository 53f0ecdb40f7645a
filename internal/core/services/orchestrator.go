package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/logger"
)

var _ driving.AssistantService = (*Assistant)(nil)

// Assistant composes retrieval, citation tracking and conversation memory
// into the "answer this question" flow. The completion call is optional:
// without an LLM service, Ask still produces full context bundles and
// Generate fails cleanly.
type Assistant struct {
	retriever driving.RetrieverService
	citations driving.CitationService
	memory    driving.MemoryService
	docs      driven.DocumentStore
	llm       driven.LLMService // nil disables rewriting and generation
}

// NewAssistant creates the orchestrator. The LLM service may be nil.
func NewAssistant(
	retriever driving.RetrieverService,
	citations driving.CitationService,
	memory driving.MemoryService,
	docs driven.DocumentStore,
	llm driven.LLMService,
) *Assistant {
	return &Assistant{
		retriever: retriever,
		citations: citations,
		memory:    memory,
		docs:      docs,
		llm:       llm,
	}
}

// Ask assembles the context bundle for a question: prior turns, ranked
// evidence and citations. Conversation memory is read but never written.
func (a *Assistant) Ask(ctx context.Context, sessionID, query string, opts driving.AskOptions) (*domain.AnswerBundle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", domain.ErrInvalidInput)
	}

	// A broken memory read should not block answering; the question just
	// loses its conversation context.
	var turns []domain.Turn
	if sessionID != "" {
		var err error
		turns, err = a.memory.Context(ctx, sessionID, opts.ContextTurns)
		if err != nil {
			logger.Warn("assistant: reading context for session %s: %v", sessionID, err)
			turns = nil
		}
	}

	effectiveQuery := a.rewriteQuery(ctx, query, turns)

	set, err := a.retriever.Retrieve(ctx, effectiveQuery, opts.Retrieval)
	if err != nil {
		return nil, err
	}

	citations, err := a.citations.Cite(ctx, set.PassageIDs(), opts.Style)
	if err != nil {
		return nil, err
	}

	return &domain.AnswerBundle{
		Retrieved:      set.Results,
		Citations:      citations,
		ContextUsed:    turns,
		EffectiveQuery: effectiveQuery,
		Degraded:       set.Degraded,
	}, nil
}

// RecordAnswer commits a completed turn once the caller has the generated
// answer.
func (a *Assistant) RecordAnswer(ctx context.Context, sessionID, query, answer string, passageIDs []string) error {
	turn := domain.NewTurn(query, answer, passageIDs)
	if _, err := a.memory.AppendTurn(ctx, sessionID, turn); err != nil {
		return fmt.Errorf("recording answer: %w", err)
	}
	return nil
}

// Generate runs Ask, calls the completion service and records the turn.
// On completion failure the bundle is still returned alongside the error
// and nothing is recorded.
func (a *Assistant) Generate(ctx context.Context, sessionID, query string, opts driving.AskOptions) (*domain.AnswerBundle, string, error) {
	bundle, err := a.Ask(ctx, sessionID, query, opts)
	if err != nil {
		return nil, "", err
	}

	if a.llm == nil {
		return bundle, "", fmt.Errorf("%w: no completion service configured", domain.ErrGenerationFailed)
	}

	prompt, err := a.buildPrompt(ctx, query, bundle)
	if err != nil {
		return bundle, "", err
	}

	answer, err := a.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return bundle, "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	if sessionID != "" {
		if err := a.RecordAnswer(ctx, sessionID, query, answer, bundleIDs(bundle)); err != nil {
			return bundle, answer, err
		}
	}

	return bundle, answer, nil
}

// rewriteQuery asks the LLM to resolve pronouns and references against the
// conversation so retrieval sees a self-contained query. Any failure falls
// back to the original.
func (a *Assistant) rewriteQuery(ctx context.Context, query string, turns []domain.Turn) string {
	if a.llm == nil || len(turns) == 0 {
		return query
	}

	history := make([]string, 0, len(turns))
	// Turns arrive most recent first; the rewriter wants them oldest first.
	for i := len(turns) - 1; i >= 0; i-- {
		history = append(history, "Q: "+turns[i].Query+"\nA: "+turns[i].Answer)
	}

	rewritten, err := a.llm.RewriteQuery(ctx, query, history)
	if err != nil {
		logger.Warn("assistant: query rewrite failed, using original: %v", err)
		return query
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}
	if rewritten != query {
		logger.Debug("assistant: rewrote query %q -> %q", query, rewritten)
	}
	return rewritten
}

// buildPrompt lays out the numbered evidence passages and the question for
// the completion call.
func (a *Assistant) buildPrompt(ctx context.Context, query string, bundle *domain.AnswerBundle) (string, error) {
	var b strings.Builder
	b.WriteString("Answer the question using only the numbered passages below. Cite passages by number.\n\n")

	for i, res := range bundle.Retrieved {
		passage, err := a.docs.GetPassage(ctx, res.PassageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return "", fmt.Errorf("resolving passage %s: %w", res.PassageID, err)
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, passage.Text)
	}

	if len(bundle.ContextUsed) > 0 {
		b.WriteString("Conversation so far:\n")
		for i := len(bundle.ContextUsed) - 1; i >= 0; i-- {
			turn := bundle.ContextUsed[i]
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Query, turn.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: " + query + "\n")
	return b.String(), nil
}

func bundleIDs(bundle *domain.AnswerBundle) []string {
	ids := make([]string, len(bundle.Retrieved))
	for i, res := range bundle.Retrieved {
		ids[i] = res.PassageID
	}
	return ids
}
