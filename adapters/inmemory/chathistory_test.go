package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithClock(start time.Time) (*InMemoryRepository, *time.Time) {
	r := NewInMemoryRepository()
	now := start
	r.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return r, &now
}

func TestInMemoryRepository_Filters(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r, _ := newRepoWithClock(start)

	require.NoError(t, r.CreateConversation(ctx, chathistory.Conversation{ID: "c", CreatedAt: start}))
	turns := []llm.Turn{
		{Role: llm.RoleUser, Content: "Tell me about Weaviate"},
		{Role: llm.RoleAssistant, Content: "It is a vector database"},
		{Role: llm.RoleUser, Content: "And Verba?"},
	}
	for _, turn := range turns {
		require.NoError(t, r.AddTurn(ctx, "c", turn))
	}

	got, err := r.GetTurnsByFilter(ctx, "c", chathistory.Filter{Roles: []llm.Role{llm.RoleUser}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []llm.Turn{turns[0], turns[2]}, got)

	got, err = r.GetTurnsByFilter(ctx, "c", chathistory.Filter{Search: "VECTOR"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []llm.Turn{turns[1]}, got)

	after := start.Add(2 * time.Second)
	got, err = r.GetTurnsByFilter(ctx, "c", chathistory.Filter{StartTime: &after}, 0)
	require.NoError(t, err)
	assert.Equal(t, turns[1:], got)

	require.NoError(t, r.DeleteTurns(ctx, "c", chathistory.Filter{Roles: []llm.Role{llm.RoleAssistant}}))
	count, err := r.GetTurnCount(ctx, "c", chathistory.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInMemoryRepository_Conversations(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r, _ := newRepoWithClock(start)

	require.NoError(t, r.CreateConversation(ctx, chathistory.Conversation{
		ID:        "a",
		Metadata:  map[string]any{"kind": "support"},
		Turns:     []llm.Turn{{Role: llm.RoleUser, Content: "seed"}},
		CreatedAt: start,
		UpdatedAt: start,
	}))
	require.NoError(t, r.CreateConversation(ctx, chathistory.Conversation{
		ID:        "b",
		Metadata:  map[string]any{"kind": "sales"},
		CreatedAt: start,
		UpdatedAt: start,
	}))

	err := r.CreateConversation(ctx, chathistory.Conversation{ID: "a"})
	assert.ErrorIs(t, err, chathistory.ErrConversationExists)

	require.NoError(t, r.AddTurn(ctx, "b", llm.Turn{Role: llm.RoleUser, Content: "hi"}))

	list, err := r.ListConversations(ctx, chathistory.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "most recently updated first")

	list, err = r.ListConversations(ctx, chathistory.Filter{Metadata: map[string]any{"kind": "support"}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleUser, Content: "seed"}}, list[0].Turns)

	list, err = r.ListConversations(ctx, chathistory.Filter{}, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, r.DeleteConversation(ctx, "a"))
	_, err = r.GetConversation(ctx, "a")
	assert.ErrorIs(t, err, chathistory.ErrConversationNotFound)
}

func TestInMemoryRepository_TrimAndClear(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	require.NoError(t, r.CreateConversation(ctx, chathistory.Conversation{ID: "c"}))
	for _, content := range []string{"1", "2", "3"} {
		require.NoError(t, r.AddTurn(ctx, "c", llm.Turn{Role: llm.RoleUser, Content: content}))
	}

	require.NoError(t, r.TrimTurns(ctx, "c", 1))
	turns, err := r.GetTurns(ctx, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleUser, Content: "3"}}, turns)

	require.NoError(t, r.ClearHistory(ctx, "c"))
	turns, err = r.GetTurns(ctx, "c", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, r.UpdateConversationMetadata(ctx, "c", map[string]any{"k": "v"}))
	conv, err := r.GetConversation(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "v", conv.Metadata["k"])
}
