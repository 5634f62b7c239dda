// Package agent implements the core orchestration loop: it drives a
// user message through bounded iterations of model calls and tool
// dispatches until the model produces a final text answer.
package agent

import (
	"sync"

	"github.com/sableagent/sable/internal/llm"
)

// Transcript is the append-only turn log for one conversation. The
// first turn is always the single system turn; Reset returns to that
// state. Tool-call batches are followed by exactly one tool turn per
// call ID, in issuance order — the Loop's dispatch discipline enforces
// this, the Transcript just records.
type Transcript struct {
	mu     sync.Mutex
	system string
	turns  []llm.Message
}

// NewTranscript creates a transcript seeded with the system turn.
func NewTranscript(systemPrompt string) *Transcript {
	t := &Transcript{system: systemPrompt}
	t.turns = []llm.Message{{Role: "system", Content: systemPrompt}}
	return t
}

// AppendUser records a user turn.
func (t *Transcript) AppendUser(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, llm.Message{Role: "user", Content: content})
}

// AppendAssistant records an assistant turn. Absent content is
// normalized to the empty string so the wire layer never sees a null.
func (t *Transcript) AppendAssistant(content string, toolCalls []llm.ToolCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, llm.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AppendToolResult records the result turn for one tool call.
func (t *Transcript) AppendToolResult(callID, payload string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, llm.Message{
		Role:       "tool",
		Content:    payload,
		ToolCallID: callID,
	})
}

// Reset discards every turn except a fresh system turn.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = []llm.Message{{Role: "system", Content: t.system}}
}

// Snapshot returns a copy of the turn log. Callers must not mutate the
// transcript through it.
func (t *Transcript) Snapshot() []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]llm.Message, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns including the system turn.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}
