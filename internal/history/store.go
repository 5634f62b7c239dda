// Package history archives finished conversations to SQLite so past
// sessions survive restarts and can be reviewed over the API. Archiving
// is best-effort: a failed write must never take down a live request.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Conversation is one archived session.
type Conversation struct {
	ID        string     `json:"id"`
	Model     string     `json:"model"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Messages  int        `json:"messages"`
}

// Message is one archived transcript turn.
type Message struct {
	ConversationID string    `json:"conversation_id"`
	Seq            int       `json:"seq"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToolCallRecord is one archived tool invocation with its outcome.
type ToolCallRecord struct {
	ConversationID string    `json:"conversation_id"`
	CallID         string    `json:"call_id"`
	Name           string    `json:"name"`
	Arguments      string    `json:"arguments"`
	Result         string    `json:"result"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists conversations, messages and tool calls.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			model      TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at   TEXT
		);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			seq             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			UNIQUE(conversation_id, seq)
		);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			call_id         TEXT NOT NULL,
			name            TEXT NOT NULL,
			arguments       TEXT NOT NULL,
			result          TEXT NOT NULL,
			error           TEXT,
			duration_ms     INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_conversation ON tool_calls(conversation_id);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartConversation records a new session.
func (s *Store) StartConversation(ctx context.Context, id, model string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, model, started_at) VALUES (?, ?, ?)`,
		id, model, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// EndConversation stamps the session's end time.
func (s *Store) EndConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	return err
}

// AppendMessage archives one transcript turn. Re-archiving the same
// (conversation, seq) pair is a no-op.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (conversation_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ConversationID, m.Seq, m.Role, m.Content,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordToolCall archives one tool invocation.
func (s *Store) RecordToolCall(ctx context.Context, tc ToolCallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (conversation_id, call_id, name, arguments, result, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ConversationID, tc.CallID, tc.Name, tc.Arguments, tc.Result, tc.Error, tc.DurationMs,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Recent lists the newest conversations with their message counts.
func (s *Store) Recent(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.model, c.started_at, c.ended_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var started string
		var ended sql.NullString
		if err := rows.Scan(&c.ID, &c.Model, &started, &ended, &c.Messages); err != nil {
			return nil, err
		}
		c.StartedAt, _ = time.Parse(time.RFC3339, started)
		if ended.Valid {
			t, _ := time.Parse(time.RFC3339, ended.String)
			c.EndedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Messages returns a conversation's archived turns in order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, seq, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ConversationID, &m.Seq, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ToolCalls returns a conversation's archived tool invocations in order.
func (s *Store) ToolCalls(ctx context.Context, conversationID string) ([]ToolCallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, call_id, name, arguments, result, error, duration_ms, created_at
		FROM tool_calls WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var tc ToolCallRecord
		var errText sql.NullString
		var created string
		if err := rows.Scan(&tc.ConversationID, &tc.CallID, &tc.Name, &tc.Arguments, &tc.Result, &errText, &tc.DurationMs, &created); err != nil {
			return nil, err
		}
		tc.Error = errText.String
		tc.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, tc)
	}
	return out, rows.Err()
}
