package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/llm"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresRepository_RequiresDB(t *testing.T) {
	_, err := NewPostgresRepository(nil)
	assert.Error(t, err)
}

func TestTurnFilter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	w := turnFilter("conv", chathistory.Filter{
		StartTime: &start,
		Roles:     []llm.Role{llm.RoleUser, llm.RoleAssistant},
		Search:    "weaviate",
	})

	assert.Equal(t,
		"conversation_id = $1 AND created_at >= $2 AND role = ANY($3) AND content ILIKE $4",
		w.String(),
	)
	require.Len(t, w.params, 4)
	assert.Equal(t, "conv", w.params[0])
	assert.Equal(t, start, w.params[1])
	assert.Equal(t, pq.Array([]string{"user", "assistant"}), w.params[2])
	assert.Equal(t, "%weaviate%", w.params[3])
	assert.Equal(t, 5, w.next())
}

func TestSelectTurnsQuery(t *testing.T) {
	query, params := selectTurnsQuery("conv", chathistory.Filter{}, 20)
	assert.True(t, strings.Contains(query, "WHERE conversation_id = $1"))
	assert.True(t, strings.Contains(query, "LIMIT $2"))
	assert.Equal(t, []any{"conv", 20}, params)

	query, params = selectTurnsQuery("conv", chathistory.Filter{}, 0)
	assert.False(t, strings.Contains(query, "LIMIT"))
	assert.Equal(t, []any{"conv"}, params)
}

func TestWhereClause_Empty(t *testing.T) {
	w := &whereClause{}
	assert.Equal(t, "1=1", w.String())
	assert.Equal(t, 1, w.next())
}

func TestPostgresRepository_UnknownConversation(t *testing.T) {
	db, fake := newFakeDB(t, "known")
	repo, err := NewPostgresRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.GetTurns(ctx, "missing", 10)
	assert.ErrorIs(t, err, chathistory.ErrConversationNotFound)

	_, err = repo.GetTurnsByFilter(ctx, "missing", chathistory.Filter{Search: "x"}, 10)
	assert.ErrorIs(t, err, chathistory.ErrConversationNotFound)

	_, err = repo.GetTurnCount(ctx, "missing", chathistory.Filter{})
	assert.ErrorIs(t, err, chathistory.ErrConversationNotFound)

	assert.ErrorIs(t, repo.ClearHistory(ctx, "missing"), chathistory.ErrConversationNotFound)
	assert.ErrorIs(t, repo.TrimTurns(ctx, "missing", 5), chathistory.ErrConversationNotFound)
	assert.ErrorIs(t, repo.DeleteTurns(ctx, "missing", chathistory.Filter{}), chathistory.ErrConversationNotFound)

	for _, stmt := range fake.recorded() {
		assert.Contains(t, stmt, "SELECT EXISTS", "no turn statement may run for an unknown conversation")
	}
}

func TestPostgresRepository_KnownConversationWithoutTurns(t *testing.T) {
	db, fake := newFakeDB(t, "known")
	repo, err := NewPostgresRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	turns, err := repo.GetTurns(ctx, "known", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	count, err := repo.GetTurnCount(ctx, "known", chathistory.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.ClearHistory(ctx, "known"))

	stmts := fake.recorded()
	require.NotEmpty(t, stmts)
	assert.Equal(t, "DELETE FROM turns WHERE conversation_id = $1", stmts[len(stmts)-1])
}
