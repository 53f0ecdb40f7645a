package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

var _ driven.SessionStore = (*SessionStore)(nil)

type sessionRecord struct {
	session domain.Session
	turns   []domain.Turn
}

// SessionStore is an in-memory session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	order    []string
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionRecord)}
}

// AppendTurn commits a turn, creating the session when needed.
func (s *SessionStore) AppendTurn(_ context.Context, sessionID string, turn domain.Turn) error {
	if sessionID == "" || turn.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &sessionRecord{session: domain.Session{ID: sessionID, CreatedAt: now}}
		s.sessions[sessionID] = rec
		s.order = append(s.order, sessionID)
	}

	stored := turn
	stored.PassageIDs = append([]string(nil), turn.PassageIDs...)
	rec.turns = append(rec.turns, stored)
	rec.session.TurnCount = len(rec.turns)
	rec.session.UpdatedAt = now
	return nil
}

// Turns returns up to limit turns for a session, most recent first. A
// non-positive limit returns all turns.
func (s *SessionStore) Turns(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	n := len(rec.turns)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Turn, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, rec.turns[i])
	}
	return out, nil
}

// ListSessions returns all sessions in creation order.
func (s *SessionStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].session)
	}
	return out, nil
}

// DeleteSession removes a session and its turns.
func (s *SessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil
	}
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SearchTurns returns turns whose query or answer contains the given text,
// most recent first.
func (s *SessionStore) SearchTurns(_ context.Context, query string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Turn
	for _, id := range s.order {
		for _, turn := range s.sessions[id].turns {
			if strings.Contains(turn.Query, query) || strings.Contains(turn.Answer, query) {
				out = append(out, turn)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
