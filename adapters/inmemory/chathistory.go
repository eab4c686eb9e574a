package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/llm"
)

type record struct {
	turn      llm.Turn
	createdAt time.Time
}

type conversation struct {
	meta    chathistory.Conversation
	records []record
}

// InMemoryRepository implements chathistory.Repository using in-memory storage
type InMemoryRepository struct {
	conversations map[string]*conversation
	mu            sync.RWMutex
	now           func() time.Time
}

var _ chathistory.Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", chathistory.ErrConversationNotFound, id)
}

func (r *InMemoryRepository) AddTurn(ctx context.Context, conversationID string, turn llm.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return notFound(conversationID)
	}

	now := r.now()
	conv.records = append(conv.records, record{turn: turn, createdAt: now})
	conv.meta.UpdatedAt = now
	return nil
}

func (r *InMemoryRepository) GetTurns(ctx context.Context, conversationID string, limit int) ([]llm.Turn, error) {
	return r.GetTurnsByFilter(ctx, conversationID, chathistory.Filter{}, limit)
}

func (r *InMemoryRepository) GetTurnsByFilter(ctx context.Context, conversationID string, filter chathistory.Filter, limit int) ([]llm.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return nil, notFound(conversationID)
	}

	var filtered []llm.Turn
	for _, rec := range conv.records {
		if recordMatchesFilter(rec, filter) {
			filtered = append(filtered, rec.turn)
		}
	}

	if limit <= 0 || limit > len(filtered) {
		limit = len(filtered)
	}

	return filtered[len(filtered)-limit:], nil
}

func (r *InMemoryRepository) DeleteTurns(ctx context.Context, conversationID string, filter chathistory.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return notFound(conversationID)
	}

	conv.records = slices.DeleteFunc(conv.records, func(rec record) bool {
		return recordMatchesFilter(rec, filter)
	})
	conv.meta.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) TrimTurns(ctx context.Context, conversationID string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return notFound(conversationID)
	}

	if keep >= 0 && len(conv.records) > keep {
		conv.records = slices.Clone(conv.records[len(conv.records)-keep:])
	}
	return nil
}

func (r *InMemoryRepository) ClearHistory(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return notFound(conversationID)
	}

	conv.records = nil
	conv.meta.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversationID]; !exists {
		return notFound(conversationID)
	}

	delete(r.conversations, conversationID)
	return nil
}

func (r *InMemoryRepository) CreateConversation(ctx context.Context, conv chathistory.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return fmt.Errorf("%w: %s", chathistory.ErrConversationExists, conv.ID)
	}

	stored := &conversation{meta: conv}
	for _, turn := range conv.Turns {
		stored.records = append(stored.records, record{turn: turn, createdAt: conv.CreatedAt})
	}
	stored.meta.Turns = nil
	r.conversations[conv.ID] = stored
	return nil
}

func (r *InMemoryRepository) GetConversation(ctx context.Context, conversationID string) (*chathistory.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return nil, notFound(conversationID)
	}

	out := conv.snapshot()
	return &out, nil
}

func (r *InMemoryRepository) ListConversations(ctx context.Context, filter chathistory.Filter, limit, offset int) ([]chathistory.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conversations []chathistory.Conversation
	for _, conv := range r.conversations {
		if conversationMatchesFilter(conv.meta, filter) {
			conversations = append(conversations, conv.snapshot())
		}
	}

	// Sort by UpdatedAt descending
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	if offset >= len(conversations) {
		return []chathistory.Conversation{}, nil
	}

	end := len(conversations)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return conversations[offset:end], nil
}

func (r *InMemoryRepository) UpdateConversationMetadata(ctx context.Context, conversationID string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return notFound(conversationID)
	}

	conv.meta.Metadata = metadata
	conv.meta.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) GetTurnCount(ctx context.Context, conversationID string, filter chathistory.Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return 0, notFound(conversationID)
	}

	if filter.IsEmpty() {
		return len(conv.records), nil
	}

	count := 0
	for _, rec := range conv.records {
		if recordMatchesFilter(rec, filter) {
			count++
		}
	}
	return count, nil
}

func (c *conversation) snapshot() chathistory.Conversation {
	out := c.meta
	out.Turns = make([]llm.Turn, len(c.records))
	for i, rec := range c.records {
		out.Turns[i] = rec.turn
	}
	return out
}

func recordMatchesFilter(rec record, filter chathistory.Filter) bool {
	if filter.StartTime != nil && rec.createdAt.Before(*filter.StartTime) {
		return false
	}

	if filter.EndTime != nil && rec.createdAt.After(*filter.EndTime) {
		return false
	}

	if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, rec.turn.Role) {
		return false
	}

	if filter.Search != "" {
		if !strings.Contains(strings.ToLower(rec.turn.Content), strings.ToLower(filter.Search)) {
			return false
		}
	}

	return true
}

func conversationMatchesFilter(conv chathistory.Conversation, filter chathistory.Filter) bool {
	if filter.StartTime != nil && conv.CreatedAt.Before(*filter.StartTime) {
		return false
	}

	if filter.EndTime != nil && conv.CreatedAt.After(*filter.EndTime) {
		return false
	}

	for k, v := range filter.Metadata {
		if convValue, exists := conv.Metadata[k]; !exists || convValue != v {
			return false
		}
	}

	return true
}
