package driving

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// MemoryService manages per-session conversation history.
type MemoryService interface {
	// AppendTurn commits a turn to a session, creating the session on first
	// use. The only mutator of conversation state.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) (string, error)

	// Context returns up to maxTurns turns for a session, most recent
	// first. An evicted or unknown session yields an empty history.
	Context(ctx context.Context, sessionID string, maxTurns int) ([]domain.Turn, error)

	// Sessions lists all live sessions.
	Sessions(ctx context.Context) ([]domain.Session, error)

	// SearchTurns searches turn history across sessions, most recent first.
	SearchTurns(ctx context.Context, query string) ([]domain.Turn, error)

	// Evict applies a count/age policy and returns the number of sessions
	// removed. Eviction is irreversible; a reused session id starts fresh.
	Evict(ctx context.Context, policy domain.EvictionPolicy) (int, error)
}
