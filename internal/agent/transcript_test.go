package agent

import (
	"testing"

	"github.com/sableagent/sable/internal/llm"
)

func TestTranscriptStartsWithSystemTurn(t *testing.T) {
	tr := NewTranscript("You are Sable.")
	turns := tr.Snapshot()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Role != "system" || turns[0].Content != "You are Sable." {
		t.Errorf("first turn = %+v", turns[0])
	}
}

func TestTranscriptAppendOrder(t *testing.T) {
	tr := NewTranscript("sys")
	tr.AppendUser("hello")
	tr.AppendAssistant("", []llm.ToolCall{{ID: "c1", Function: llm.ToolFunction{Name: "read"}}})
	tr.AppendToolResult("c1", `{"success":true}`)
	tr.AppendAssistant("done", nil)

	turns := tr.Snapshot()
	roles := []string{"system", "user", "assistant", "tool", "assistant"}
	if len(turns) != len(roles) {
		t.Fatalf("expected %d turns, got %d", len(roles), len(turns))
	}
	for i, want := range roles {
		if turns[i].Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turns[i].Role, want)
		}
	}
	if turns[3].ToolCallID != "c1" {
		t.Errorf("tool turn ToolCallID = %q, want c1", turns[3].ToolCallID)
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript("sys")
	tr.AppendUser("hello")
	tr.AppendAssistant("hi", nil)

	tr.Reset()

	turns := tr.Snapshot()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn after reset, got %d", len(turns))
	}
	if turns[0].Role != "system" || turns[0].Content != "sys" {
		t.Errorf("turn after reset = %+v", turns[0])
	}
}

func TestTranscriptSnapshotIsCopy(t *testing.T) {
	tr := NewTranscript("sys")
	tr.AppendUser("hello")

	snap := tr.Snapshot()
	snap[0].Content = "mutated"
	snap = append(snap, llm.Message{Role: "user", Content: "extra"})
	_ = snap

	turns := tr.Snapshot()
	if turns[0].Content != "sys" {
		t.Error("mutating a snapshot changed the transcript")
	}
	if len(turns) != 2 {
		t.Errorf("transcript length = %d, want 2", len(turns))
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession("sys")
	first := s.ID()
	if first == "" {
		t.Fatal("session ID should not be empty")
	}
	s.Transcript().AppendUser("hello")

	s.Reset()

	if s.ID() == first {
		t.Error("Reset should assign a new conversation ID")
	}
	if s.Transcript().Len() != 1 {
		t.Errorf("transcript length after reset = %d, want 1", s.Transcript().Len())
	}
}
