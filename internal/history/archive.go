package history

import (
	"context"
	"log/slog"
)

// Archiver is a nil-safe, non-fatal front for Store. Every method is a
// no-op on a nil receiver, and write failures are logged rather than
// returned so the request path can never be broken by the archive.
type Archiver struct {
	store  *Store
	logger *slog.Logger
}

// NewArchiver wraps store. A nil store yields a disabled archiver.
func NewArchiver(store *Store, logger *slog.Logger) *Archiver {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, logger: logger.With("component", "history")}
}

// ConversationStarted records the start of a session.
func (a *Archiver) ConversationStarted(ctx context.Context, id, model string) {
	if a == nil {
		return
	}
	if err := a.store.StartConversation(ctx, id, model); err != nil {
		a.logger.Warn("failed to archive conversation start", "conversation", id, "error", err)
	}
}

// ConversationEnded records the end of a session.
func (a *Archiver) ConversationEnded(ctx context.Context, id string) {
	if a == nil {
		return
	}
	if err := a.store.EndConversation(ctx, id); err != nil {
		a.logger.Warn("failed to archive conversation end", "conversation", id, "error", err)
	}
}

// Message archives one transcript turn.
func (a *Archiver) Message(ctx context.Context, m Message) {
	if a == nil {
		return
	}
	if err := a.store.AppendMessage(ctx, m); err != nil {
		a.logger.Warn("failed to archive message", "conversation", m.ConversationID, "seq", m.Seq, "error", err)
	}
}

// ToolCall archives one tool invocation.
func (a *Archiver) ToolCall(ctx context.Context, tc ToolCallRecord) {
	if a == nil {
		return
	}
	if err := a.store.RecordToolCall(ctx, tc); err != nil {
		a.logger.Warn("failed to archive tool call", "conversation", tc.ConversationID, "tool", tc.Name, "error", err)
	}
}
