package domain

import "time"

// Turn is one question/answer exchange in a conversation session.
// Turns are append-only: never mutated after creation.
type Turn struct {
	// ID uniquely identifies the turn.
	ID string

	// Query is the user question as asked.
	Query string

	// Answer is the generated answer text.
	Answer string

	// PassageIDs are the passages the answer drew on, ordered and
	// deduplicated.
	PassageIDs []string

	// Timestamp is when the turn was committed.
	Timestamp time.Time
}

// NewTurn builds a turn with its passage ids deduplicated in order of first
// appearance. ID and Timestamp are filled in by conversation memory when the
// turn is appended.
func NewTurn(query, answer string, passageIDs []string) Turn {
	return Turn{
		Query:      query,
		Answer:     answer,
		PassageIDs: dedupeOrdered(passageIDs),
	}
}

// Session is the metadata of a conversation session. Turn history lives in
// the session store; sessions are created on first use of an id and removed
// only by eviction.
type Session struct {
	// ID is the caller-chosen session identifier.
	ID string

	// TurnCount is the number of committed turns.
	TurnCount int

	// CreatedAt is when the first turn arrived.
	CreatedAt time.Time

	// UpdatedAt is when the last turn arrived.
	UpdatedAt time.Time
}

// EvictionPolicy bounds conversation memory. Zero fields disable the
// corresponding bound.
type EvictionPolicy struct {
	// MaxSessions caps the number of live sessions; the least recently
	// active sessions beyond the cap are evicted.
	MaxSessions int

	// MaxAge evicts sessions whose last activity is older than this.
	MaxAge time.Duration
}

func dedupeOrdered(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
