package chathistory

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/chatstream/llm"
)

// Memory keeps the turns that feed each generation call
type Memory struct {
	repo Repository
	opts *Options
}

func New(repo Repository, opts ...Option) *Memory {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Memory{
		repo: repo,
		opts: options,
	}
}

// CreateConversation creates a new conversation
func (m *Memory) CreateConversation(ctx context.Context, metadata map[string]any) (*Conversation, error) {
	return m.CreateConversationWithID(ctx, metadata, m.opts.GenerateID())
}

// CreateConversationWithID creates a conversation under a caller-chosen id
func (m *Memory) CreateConversationWithID(ctx context.Context, metadata map[string]any, id string) (*Conversation, error) {
	now := time.Now()
	conv := Conversation{
		ID:        id,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// OpenConversation resumes the conversation with the given id, creating it
// with metadata when it does not exist yet. An empty id always creates a new
// conversation.
func (m *Memory) OpenConversation(ctx context.Context, id string, metadata map[string]any) (*Conversation, error) {
	if id == "" {
		return m.CreateConversation(ctx, metadata)
	}
	conv, err := m.repo.GetConversation(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		return m.CreateConversationWithID(ctx, metadata, id)
	}
	return conv, err
}

// AddTurn validates and stores a turn, then drops the oldest turns beyond
// MaxTurns
func (m *Memory) AddTurn(ctx context.Context, conversationID string, turn llm.Turn) error {
	if err := llm.ValidateTurns([]llm.Turn{turn}); err != nil {
		return err
	}
	if err := m.repo.AddTurn(ctx, conversationID, turn); err != nil {
		return err
	}
	if m.opts.MaxTurns > 0 {
		return m.repo.TrimTurns(ctx, conversationID, m.opts.MaxTurns)
	}
	return nil
}

// RecordExchange stores a user query followed by the assistant's answer
func (m *Memory) RecordExchange(ctx context.Context, conversationID, query, answer string) error {
	if err := m.AddTurn(ctx, conversationID, llm.Turn{Role: llm.RoleUser, Content: query}); err != nil {
		return err
	}
	return m.AddTurn(ctx, conversationID, llm.Turn{Role: llm.RoleAssistant, Content: answer})
}

// Turns retrieves the most recent turns of a conversation. A non-positive
// limit uses ReturnLimit.
func (m *Memory) Turns(ctx context.Context, conversationID string, limit int) ([]llm.Turn, error) {
	if limit <= 0 {
		limit = m.opts.ReturnLimit
	}
	return m.repo.GetTurns(ctx, conversationID, limit)
}

// TurnsByFilter retrieves up to ReturnLimit turns matching filter from a
// specific conversation
func (m *Memory) TurnsByFilter(ctx context.Context, conversationID string, filter Filter) ([]llm.Turn, error) {
	return m.repo.GetTurnsByFilter(ctx, conversationID, filter, m.opts.ReturnLimit)
}

// GetConversation retrieves a conversation by ID
func (m *Memory) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return m.repo.GetConversation(ctx, conversationID)
}

// ClearHistory clears all turns from a specific conversation
func (m *Memory) ClearHistory(ctx context.Context, conversationID string) error {
	return m.repo.ClearHistory(ctx, conversationID)
}

// TurnCount counts the turns of a conversation matching filter
func (m *Memory) TurnCount(ctx context.Context, conversationID string, filter Filter) (int, error) {
	return m.repo.GetTurnCount(ctx, conversationID, filter)
}
