package chathistory

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/chatstream/llm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// Conversation represents a chat conversation
type Conversation struct {
	ID        string         `json:"id"`
	Turns     []llm.Turn     `json:"turns"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Filter represents query filters for chat history
type Filter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Roles     []llm.Role
	Search    string
	Metadata  map[string]any
}

func (f Filter) IsEmpty() bool {
	return f.StartTime == nil &&
		f.EndTime == nil &&
		len(f.Roles) == 0 &&
		f.Search == "" &&
		len(f.Metadata) == 0
}

// Repository defines the storage operations behind Memory
type Repository interface {
	// AddTurn appends a turn to a specific conversation
	AddTurn(ctx context.Context, conversationID string, turn llm.Turn) error

	// GetTurns retrieves the last limit turns in chronological order
	GetTurns(ctx context.Context, conversationID string, limit int) ([]llm.Turn, error)

	// GetTurnsByFilter retrieves the last limit turns matching filter
	GetTurnsByFilter(ctx context.Context, conversationID string, filter Filter, limit int) ([]llm.Turn, error)

	// DeleteTurns deletes turns that match the filter from a conversation
	DeleteTurns(ctx context.Context, conversationID string, filter Filter) error

	// TrimTurns keeps only the newest keep turns
	TrimTurns(ctx context.Context, conversationID string, keep int) error

	// ClearHistory deletes all turns from a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// DeleteConversation deletes an entire conversation
	DeleteConversation(ctx context.Context, conversationID string) error

	// CreateConversation creates a new conversation
	CreateConversation(ctx context.Context, conv Conversation) error

	// GetConversation retrieves a conversation by ID
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)

	// ListConversations retrieves conversations, most recently updated first
	ListConversations(ctx context.Context, filter Filter, limit, offset int) ([]Conversation, error)

	// UpdateConversationMetadata updates conversation metadata
	UpdateConversationMetadata(ctx context.Context, conversationID string, metadata map[string]any) error

	// GetTurnCount returns the number of turns in a conversation
	GetTurnCount(ctx context.Context, conversationID string, filter Filter) (int, error)
}
