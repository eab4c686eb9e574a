package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/llm"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

var _ chathistory.Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &PostgresRepository{db: db}, nil
}

// Required database schema
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    metadata JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
    id BIGSERIAL PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation_id ON turns(conversation_id);
CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// whereClause accumulates numbered placeholders for a WHERE clause
type whereClause struct {
	conditions []string
	params     []any
}

func (w *whereClause) add(cond string, param any) {
	w.params = append(w.params, param)
	w.conditions = append(w.conditions, fmt.Sprintf(cond, len(w.params)))
}

func (w *whereClause) next() int {
	return len(w.params) + 1
}

func (w *whereClause) String() string {
	if len(w.conditions) == 0 {
		return "1=1"
	}
	return strings.Join(w.conditions, " AND ")
}

func turnFilter(conversationID string, filter chathistory.Filter) *whereClause {
	w := &whereClause{}
	w.add("conversation_id = $%d", conversationID)

	if filter.StartTime != nil {
		w.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		w.add("created_at <= $%d", *filter.EndTime)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		w.add("role = ANY($%d)", pq.Array(roles))
	}
	if filter.Search != "" {
		w.add("content ILIKE $%d", "%"+filter.Search+"%")
	}
	return w
}

func (r *PostgresRepository) CreateConversation(ctx context.Context, conv chathistory.Conversation) error {
	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, conv.ID, metadata, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", chathistory.ErrConversationExists, conv.ID)
		}
		return err
	}

	for _, turn := range conv.Turns {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO turns (conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, string(turn.Role), turn.Content, conv.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) AddTurn(ctx context.Context, conversationID string, turn llm.Turn) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`, now, conversationID)
	if err != nil {
		return err
	}
	if err := requireRow(res, conversationID); err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO turns (conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)
	`, conversationID, string(turn.Role), turn.Content, now)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetTurns(ctx context.Context, conversationID string, limit int) ([]llm.Turn, error) {
	return r.GetTurnsByFilter(ctx, conversationID, chathistory.Filter{}, limit)
}

func (r *PostgresRepository) GetTurnsByFilter(ctx context.Context, conversationID string, filter chathistory.Filter, limit int) ([]llm.Turn, error) {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query, params := selectTurnsQuery(conversationID, filter, limit)
	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []llm.Turn
	for rows.Next() {
		var turn llm.Turn
		var role string
		if err := rows.Scan(&role, &turn.Content); err != nil {
			return nil, err
		}
		turn.Role = llm.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come newest first; return them in chronological order
	for i := 0; i < len(turns)/2; i++ {
		j := len(turns) - i - 1
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func selectTurnsQuery(conversationID string, filter chathistory.Filter, limit int) (string, []any) {
	w := turnFilter(conversationID, filter)
	query := fmt.Sprintf(`
		SELECT role, content
		FROM turns
		WHERE %s
		ORDER BY created_at DESC, id DESC`, w)
	if limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT $%d", w.next())
		w.params = append(w.params, limit)
	}
	return query, w.params
}

func (r *PostgresRepository) DeleteTurns(ctx context.Context, conversationID string, filter chathistory.Filter) error {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return err
	}

	w := turnFilter(conversationID, filter)
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM turns WHERE %s`, w), w.params...)
	return err
}

func (r *PostgresRepository) TrimTurns(ctx context.Context, conversationID string, keep int) error {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM turns
		WHERE conversation_id = $1 AND id NOT IN (
			SELECT id FROM turns
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`, conversationID, keep)
	return err
}

func (r *PostgresRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = $1`, conversationID)
	return err
}

func (r *PostgresRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return err
	}
	return requireRow(res, conversationID)
}

func (r *PostgresRepository) GetConversation(ctx context.Context, conversationID string) (*chathistory.Conversation, error) {
	var conv chathistory.Conversation
	var metadataJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, metadata, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, conversationID).Scan(
		&conv.ID,
		&metadataJSON,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", chathistory.ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &conv.Metadata); err != nil {
			return nil, err
		}
	}

	conv.Turns, err = r.GetTurns(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

func (r *PostgresRepository) ListConversations(ctx context.Context, filter chathistory.Filter, limit, offset int) ([]chathistory.Conversation, error) {
	w := &whereClause{}
	if filter.StartTime != nil {
		w.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		w.add("created_at <= $%d", *filter.EndTime)
	}
	if len(filter.Metadata) > 0 {
		metadata, err := json.Marshal(filter.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata filter: %w", err)
		}
		w.add("metadata @> $%d", metadata)
	}

	query := fmt.Sprintf(`
		SELECT id, metadata, created_at, updated_at
		FROM conversations
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, w, w.next(), w.next()+1)

	params := append(w.params, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []chathistory.Conversation
	for rows.Next() {
		var conv chathistory.Conversation
		var metadataJSON []byte
		if err := rows.Scan(&conv.ID, &metadataJSON, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &conv.Metadata); err != nil {
				return nil, err
			}
		}

		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

func (r *PostgresRepository) UpdateConversationMetadata(ctx context.Context, conversationID string, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET metadata = $1, updated_at = NOW()
		WHERE id = $2
	`, metadataJSON, conversationID)
	if err != nil {
		return err
	}
	return requireRow(res, conversationID)
}

func (r *PostgresRepository) GetTurnCount(ctx context.Context, conversationID string, filter chathistory.Filter) (int, error) {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return 0, err
	}

	w := turnFilter(conversationID, filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM turns WHERE %s`, w), w.params...).Scan(&count)
	return count, err
}

// requireConversation fails with ErrConversationNotFound for unknown ids so
// turn queries never answer an empty list for a conversation that does not
// exist.
func (r *PostgresRepository) requireConversation(ctx context.Context, conversationID string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", chathistory.ErrConversationNotFound, conversationID)
	}
	return nil
}

func requireRow(res sql.Result, conversationID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", chathistory.ErrConversationNotFound, conversationID)
	}
	return nil
}
