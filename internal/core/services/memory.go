package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/logger"
)

var _ driving.MemoryService = (*ConversationMemory)(nil)

// DefaultContextTurns bounds conversation context when the caller does not
// specify a limit.
const DefaultContextTurns = 10

// ConversationMemory manages per-session turn history on top of a session
// store. Turns are append-only; sessions disappear only through eviction.
type ConversationMemory struct {
	sessions driven.SessionStore
	locks    *keyMutex
}

// NewConversationMemory creates a conversation memory service.
func NewConversationMemory(sessions driven.SessionStore) *ConversationMemory {
	return &ConversationMemory{
		sessions: sessions,
		locks:    newKeyMutex(),
	}
}

// AppendTurn commits a turn to a session, creating the session on first use.
// The turn id and timestamp are assigned here; the id is returned.
func (m *ConversationMemory) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is empty: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(turn.Query) == "" {
		return "", fmt.Errorf("turn query is empty: %w", domain.ErrInvalidInput)
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	if err := m.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		return "", fmt.Errorf("appending turn: %w", err)
	}
	logger.Debug("memory: appended turn %s to session %s", turn.ID, sessionID)
	return turn.ID, nil
}

// Context returns up to maxTurns turns for a session, most recent first.
// A non-positive maxTurns uses DefaultContextTurns.
func (m *ConversationMemory) Context(ctx context.Context, sessionID string, maxTurns int) ([]domain.Turn, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultContextTurns
	}
	turns, err := m.sessions.Turns(ctx, sessionID, maxTurns)
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	return turns, nil
}

// Sessions lists all live sessions.
func (m *ConversationMemory) Sessions(ctx context.Context) ([]domain.Session, error) {
	return m.sessions.ListSessions(ctx)
}

// SearchTurns searches turn history across sessions, most recent first.
func (m *ConversationMemory) SearchTurns(ctx context.Context, query string) ([]domain.Turn, error) {
	return m.sessions.SearchTurns(ctx, query)
}

// Evict applies the policy and returns the number of sessions removed.
// Age-based eviction runs first, then the least recently active sessions
// beyond the cap are dropped.
func (m *ConversationMemory) Evict(ctx context.Context, policy domain.EvictionPolicy) (int, error) {
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}

	now := time.Now().UTC()
	evicted := 0

	var live []domain.Session
	for _, sess := range sessions {
		if policy.MaxAge > 0 && now.Sub(sess.UpdatedAt) > policy.MaxAge {
			if err := m.sessions.DeleteSession(ctx, sess.ID); err != nil {
				return evicted, fmt.Errorf("evicting session %s: %w", sess.ID, err)
			}
			logger.Info("memory: evicted session %s (idle past %s)", sess.ID, policy.MaxAge)
			evicted++
			continue
		}
		live = append(live, sess)
	}

	if policy.MaxSessions > 0 && len(live) > policy.MaxSessions {
		sort.Slice(live, func(i, j int) bool {
			if !live[i].UpdatedAt.Equal(live[j].UpdatedAt) {
				return live[i].UpdatedAt.Before(live[j].UpdatedAt)
			}
			return live[i].ID < live[j].ID
		})
		for _, sess := range live[:len(live)-policy.MaxSessions] {
			if err := m.sessions.DeleteSession(ctx, sess.ID); err != nil {
				return evicted, fmt.Errorf("evicting session %s: %w", sess.ID, err)
			}
			logger.Info("memory: evicted session %s (over session cap)", sess.ID)
			evicted++
		}
	}

	return evicted, nil
}
