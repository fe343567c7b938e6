// Package store persists chats and assistant messages in SQLite.
//
// The database lives at paths.StoreFilePath by default. One chat row
// per conversation, one message row per completed assistant turn; tool
// calls and results are stored as JSON columns alongside the text.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zhubert/agentflow/agent"
)

// ErrNotFound is returned when a chat or message does not exist.
var ErrNotFound = errors.New("not found")

// Chat is one conversation. ClaudeSessionID, once set, lets a future
// subprocess invocation resume the conversation context.
type Chat struct {
	ID              string
	ClaudeSessionID string
	CreatedAt       time.Time
}

// Message is one persisted turn.
type Message struct {
	ID          string
	ChatID      string
	Role        string
	Content     string
	ToolCalls   []agent.ToolCall
	ToolResults []agent.ToolResult
	CreatedAt   time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// migrations. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id                TEXT PRIMARY KEY,
		claude_session_id TEXT,
		created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		chat_id      TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		role         TEXT NOT NULL,
		content      TEXT NOT NULL DEFAULT '',
		tool_calls   TEXT,
		tool_results TEXT,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateChat inserts a new empty conversation.
func (s *Store) CreateChat(ctx context.Context) (Chat, error) {
	chat := Chat{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, created_at) VALUES (?, ?)`,
		chat.ID, chat.CreatedAt)
	if err != nil {
		return Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetChat loads one conversation.
func (s *Store) GetChat(ctx context.Context, chatID string) (Chat, error) {
	var (
		chat      Chat
		sessionID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, claude_session_id, created_at FROM chats WHERE id = ?`,
		chatID).Scan(&chat.ID, &sessionID, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return Chat{}, fmt.Errorf("failed to load chat %s: %w", chatID, err)
	}
	chat.ClaudeSessionID = sessionID.String
	return chat, nil
}

// SetSessionID records the resumable session id for a chat. The first
// value sticks: a chat that already has a session id is left untouched
// and no error is reported, matching the capture-once contract.
func (s *Store) SetSessionID(ctx context.Context, chatID, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET claude_session_id = ?
		 WHERE id = ? AND (claude_session_id IS NULL OR claude_session_id = '')`,
		sessionID, chatID)
	if err != nil {
		return fmt.Errorf("failed to set session id for chat %s: %w", chatID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// either already set or the chat is missing; only the latter is an error
		if _, err := s.GetChat(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}

// SessionID returns the stored session id for a chat, empty when none
// has been captured yet.
func (s *Store) SessionID(ctx context.Context, chatID string) (string, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	return chat.ClaudeSessionID, nil
}

// SaveAssistantTurn persists one completed turn as an assistant
// message. Tool calls and results serialize to JSON columns; empty
// slices store as NULL.
func (s *Store) SaveAssistantTurn(ctx context.Context, chatID string, turn agent.TurnContent) (Message, error) {
	msg := Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        "assistant",
		Content:     turn.Text,
		ToolCalls:   turn.ToolCalls,
		ToolResults: turn.ToolResults,
		CreatedAt:   time.Now().UTC(),
	}

	toolCalls, err := marshalNullable(turn.ToolCalls)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode tool calls: %w", err)
	}
	toolResults, err := marshalNullable(turn.ToolResults)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode tool results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, tool_calls, tool_results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, toolCalls, toolResults, msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("failed to save assistant turn for chat %s: %w", chatID, err)
	}
	return msg, nil
}

// AssistantTurnCount returns how many assistant turns a chat has
// persisted. This feeds turn segmentation when a session is resumed.
func (s *Store) AssistantTurnCount(ctx context.Context, chatID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = ? AND role = 'assistant'`,
		chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns for chat %s: %w", chatID, err)
	}
	return n, nil
}

// Messages returns a chat's messages in persistence order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, tool_calls, tool_results, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at, id`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			msg         Message
			toolCalls   sql.NullString
			toolResults sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content,
			&toolCalls, &toolResults, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls for message %s: %w", msg.ID, err)
			}
		}
		if toolResults.Valid {
			if err := json.Unmarshal([]byte(toolResults.String), &msg.ToolResults); err != nil {
				return nil, fmt.Errorf("failed to decode tool results for message %s: %w", msg.ID, err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// marshalNullable encodes v to JSON, mapping empty to SQL NULL.
func marshalNullable[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
