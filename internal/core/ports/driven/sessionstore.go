package driven

import (
	"context"

	"github.com/tessera-labs/recall/internal/core/domain"
)

// SessionStore persists conversation sessions and their turns.
// Conversation memory is the only writer.
type SessionStore interface {
	// AppendTurn commits a fully built turn, creating the session if it does
	// not exist. The commit is atomic: a partially constructed turn is never
	// visible to readers.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error

	// Turns returns up to limit turns for a session, most recent first.
	// An unknown session yields no turns and no error.
	Turns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	// ListSessions returns all sessions.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// DeleteSession removes a session and its turns.
	DeleteSession(ctx context.Context, sessionID string) error

	// SearchTurns returns turns whose query or answer contains the given
	// text, most recent first.
	SearchTurns(ctx context.Context, query string) ([]domain.Turn, error)
}
