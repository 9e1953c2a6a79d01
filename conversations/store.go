// Package conversations persists conversation history to SQLite and
// reconstructs it as llm messages for subsequent runs.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/aschepis/agentloop/llm"
)

// Store handles persistence of conversation messages.
// It implements agent.MessagePersister.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendUserMessage saves a user text message to the conversation history.
func (s *Store) AppendUserMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.insertText(ctx, agentID, threadID, "user", content)
}

// AppendAssistantMessage saves an assistant text-only message to the conversation history.
func (s *Store) AppendAssistantMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.insertText(ctx, agentID, threadID, "assistant", content)
}

func (s *Store) insertText(ctx context.Context, agentID, threadID, role, content string) error {
	now := time.Now().Unix()
	query := sq.Insert("conversations").
		Columns("agent_id", "thread_id", "role", "content", "tool_name", "created_at").
		Values(agentID, threadID, role, content, nil, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendToolCall saves an assistant tool-call request to the conversation history.
// The call's raw argument JSON is stored verbatim in the content column.
// Uses INSERT OR IGNORE to prevent duplicate tool call IDs in case of crashes/restarts.
func (s *Store) AppendToolCall(ctx context.Context, agentID, threadID string, call llm.ToolCall) error {
	now := time.Now().Unix()
	// Duplicates are rejected by the unique index on (agent_id, thread_id, tool_id, role)
	query := sq.Insert("conversations").
		Columns("agent_id", "thread_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(agentID, threadID, "assistant", call.Arguments, call.Name, call.ID, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// SQLite requires "OR IGNORE" to come after "INSERT", so we replace "INSERT INTO" with "INSERT OR IGNORE INTO"
	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendToolResult saves a tool result message to the conversation history.
// Uses INSERT OR IGNORE to prevent duplicate tool results in case of crashes/restarts.
func (s *Store) AppendToolResult(ctx context.Context, agentID, threadID string, result llm.Message) error {
	payload := map[string]interface{}{
		"result":   result.Content,
		"is_error": result.ToolCallError,
	}
	contentJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal tool result data: %w", err)
	}

	now := time.Now().Unix()
	// The unique index allows one 'assistant' row and one 'tool' row per
	// tool_id, preventing duplicate results
	query := sq.Insert("conversations").
		Columns("agent_id", "thread_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(agentID, threadID, "tool", string(contentJSON), result.ToolName, result.ToolCallID, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// History loads a thread's messages in insertion order, reconstructed as llm
// messages. Adjacent assistant tool-call rows fold into the preceding
// assistant message when one exists, matching how providers expect a turn
// with text plus calls to arrive.
func (s *Store) History(ctx context.Context, agentID, threadID string) ([]llm.Message, error) {
	query := sq.Select("role", "content", "tool_name", "tool_id").
		From("conversations").
		Where(sq.Eq{"agent_id": agentID, "thread_id": threadID}).
		OrderBy("id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var role, content string
		var toolName, toolID sql.NullString
		if err := rows.Scan(&role, &content, &toolName, &toolID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		switch {
		case role == "assistant" && toolID.Valid:
			call := llm.ToolCall{
				ID:        toolID.String,
				Name:      toolName.String,
				Arguments: content,
			}
			if n := len(messages); n > 0 && messages[n-1].Role == llm.RoleAssistant {
				messages[n-1].ToolCalls = append(messages[n-1].ToolCalls, call)
			} else {
				messages = append(messages, llm.NewToolCallMessage("", []llm.ToolCall{call}))
			}

		case role == "tool":
			var payload struct {
				Result  string `json:"result"`
				IsError bool   `json:"is_error"`
			}
			if err := json.Unmarshal([]byte(content), &payload); err != nil {
				payload.Result = content
			}
			messages = append(messages, llm.NewToolResultMessage(
				toolID.String, toolName.String, payload.Result, payload.IsError))

		default:
			messages = append(messages, llm.Message{Role: llm.MessageRole(role), Content: content})
		}
	}
	return messages, rows.Err()
}

// Threads lists the distinct thread IDs recorded for an agent, most recent first.
func (s *Store) Threads(ctx context.Context, agentID string) ([]string, error) {
	query := sq.Select("thread_id").
		From("conversations").
		Where(sq.Eq{"agent_id": agentID}).
		GroupBy("thread_id").
		OrderBy("MAX(created_at) DESC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}
