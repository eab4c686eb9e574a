package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a conversation turn
type Role string

const (
	// RoleSystem represents a system message
	RoleSystem Role = "system"
	// RoleUser represents a user message
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"
)

// ErrUnknownRole is returned by ParseRole for tags outside the supported set
var ErrUnknownRole = errors.New("llm: unknown role")

var roleAliases = map[string]Role{
	"system":    RoleSystem,
	"user":      RoleUser,
	"human":     RoleUser,
	"assistant": RoleAssistant,
	"ai":        RoleAssistant,
	"bot":       RoleAssistant,
}

// ParseRole normalizes a role tag coming from outside the module
func ParseRole(s string) (Role, error) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return role, nil
}

// Valid reports whether r is one of the supported roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one entry of the conversation that precedes the current query
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is the wire-level unit sent to the provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// queryTemplate wraps the user query and the retrieved context
const queryTemplate = "Answer this query: '%s' with this provided context: %s"

// BuildMessages assembles the provider message list: the system prompt first,
// then the conversation in order, then the templated query.
func BuildMessages(query, context string, history []Turn, systemPrompt string) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{
		Role:    string(RoleSystem),
		Content: systemPrompt,
	})

	for _, turn := range history {
		messages = append(messages, Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	messages = append(messages, Message{
		Role:    string(RoleUser),
		Content: fmt.Sprintf(queryTemplate, query, context),
	})

	return messages
}

// ValidateTurns rejects turns whose role is not supported
func ValidateTurns(turns []Turn) error {
	for i, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("turn %d: %w: %q", i, ErrUnknownRole, turn.Role)
		}
	}
	return nil
}

func TurnsToString(turns []Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		if turn.Role == RoleSystem {
			continue
		}
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
