package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-labs/recall/internal/core/domain"
)

func TestSessionStore_AppendAndTurns(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.AppendTurn(ctx, "s1", domain.Turn{
			ID: id, Query: id + " q", Answer: id + " a", Timestamp: time.Now(),
		}))
	}

	turns, err := store.Turns(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "t3", turns[0].ID)
	assert.Equal(t, "t2", turns[1].ID)

	all, err := store.Turns(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSessionStore_RejectsEmptyIDs(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	assert.ErrorIs(t, store.AppendTurn(ctx, "", domain.Turn{ID: "t1"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.AppendTurn(ctx, "s1", domain.Turn{}), domain.ErrInvalidInput)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	store := NewSessionStore()
	turns, err := store.Turns(context.Background(), "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSessionStore_ListAndDelete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "s1", domain.Turn{ID: "t1", Timestamp: time.Now()}))
	require.NoError(t, store.AppendTurn(ctx, "s2", domain.Turn{ID: "t2", Timestamp: time.Now()}))
	require.NoError(t, store.AppendTurn(ctx, "s2", domain.Turn{ID: "t3", Timestamp: time.Now()}))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].TurnCount)
	assert.Equal(t, 2, sessions[1].TurnCount)

	require.NoError(t, store.DeleteSession(ctx, "s2"))
	sessions, err = store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestSessionStore_SearchTurns(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendTurn(ctx, "s1", domain.Turn{
		ID: "t1", Query: "attention basics", Answer: "foo", Timestamp: base,
	}))
	require.NoError(t, store.AppendTurn(ctx, "s2", domain.Turn{
		ID: "t2", Query: "other", Answer: "attention layers", Timestamp: base.Add(time.Minute),
	}))
	require.NoError(t, store.AppendTurn(ctx, "s2", domain.Turn{
		ID: "t3", Query: "unrelated", Answer: "nope", Timestamp: base.Add(2 * time.Minute),
	}))

	turns, err := store.SearchTurns(ctx, "attention")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "t2", turns[0].ID)
	assert.Equal(t, "t1", turns[1].ID)
}
