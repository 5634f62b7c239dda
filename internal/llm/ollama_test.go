package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCount int
		wantName  string // First tool name if wantCount > 0
	}{
		{
			name:      "empty content",
			content:   "",
			wantCount: 0,
		},
		{
			name:      "whitespace only",
			content:   "   \n\t  ",
			wantCount: 0,
		},
		{
			name:      "plain text no JSON",
			content:   "There are three Go files in this directory.",
			wantCount: 0,
		},
		{
			name:      "single tool call object",
			content:   `{"name": "read", "arguments": {"file_path": "main.go"}}`,
			wantCount: 1,
			wantName:  "read",
		},
		{
			name:      "single tool call with whitespace",
			content:   `  {"name": "read", "arguments": {"file_path": "main.go"}}  `,
			wantCount: 1,
			wantName:  "read",
		},
		{
			name:      "array of tool calls",
			content:   `[{"name": "glob", "arguments": {"pattern": "*.go"}}, {"name": "read", "arguments": {}}]`,
			wantCount: 2,
			wantName:  "glob",
		},
		{
			name:      "tagged tool call",
			content:   `<tool_call>{"name": "bash", "arguments": {"command": "ls"}}</tool_call>`,
			wantCount: 1,
			wantName:  "bash",
		},
		{
			name:      "tagged tool call without closing tag",
			content:   `<tool_call>{"name": "read", "arguments": {"file_path": "go.mod"}}`,
			wantCount: 1,
			wantName:  "read",
		},
		{
			name:      "tagged with preamble",
			content:   `Let me check that for you. <tool_call>{"name": "grep", "arguments": {"pattern": "TODO"}}</tool_call>`,
			wantCount: 1,
			wantName:  "grep",
		},
		{
			name:      "empty arguments",
			content:   `{"name": "glob", "arguments": {}}`,
			wantCount: 1,
			wantName:  "glob",
		},
		{
			name:      "nested arguments",
			content:   `{"name": "http_request", "arguments": {"url": "http://example.com", "headers": {"Accept": "text/html"}}}`,
			wantCount: 1,
			wantName:  "http_request",
		},
		{
			name:      "malformed JSON",
			content:   `{"name": "read", "arguments": {`,
			wantCount: 0,
		},
		{
			name:      "JSON without name field",
			content:   `{"foo": "bar", "arguments": {}}`,
			wantCount: 0,
		},
		{
			name:      "JSON with empty name",
			content:   `{"name": "", "arguments": {}}`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content)

			if len(got) != tt.wantCount {
				t.Errorf("parseTextToolCalls() returned %d tools, want %d", len(got), tt.wantCount)
				return
			}

			if tt.wantCount > 0 && got[0].Function.Name != tt.wantName {
				t.Errorf("parseTextToolCalls() first tool name = %q, want %q", got[0].Function.Name, tt.wantName)
			}
		})
	}
}

func TestParseTextToolCalls_Arguments(t *testing.T) {
	content := `{"name": "edit", "arguments": {"file_path": "main.go", "old_string": "foo", "new_string": "bar"}}`

	calls := parseTextToolCalls(content)
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}

	args := calls[0].Function.Arguments
	if args["file_path"] != "main.go" {
		t.Errorf("file_path = %v, want 'main.go'", args["file_path"])
	}
	if args["old_string"] != "foo" {
		t.Errorf("old_string = %v, want 'foo'", args["old_string"])
	}
	if args["new_string"] != "bar" {
		t.Errorf("new_string = %v, want 'bar'", args["new_string"])
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"Hello!"},"done":true,"prompt_eval_count":12,"eval_count":3}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "hi"}}, nil, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Message.Content != "Hello!" {
		t.Errorf("content = %q, want Hello!", resp.Message.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("tokens = %d/%d, want 12/3", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOllamaChat_NativeToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"read","arguments":{"file_path":"go.mod"}}}]},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "read go.mod"}}, nil, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].Function.Name != "read" {
		t.Errorf("tool name = %q, want read", resp.Message.ToolCalls[0].Function.Name)
	}
}

func TestOllamaChat_TextEmbeddedToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"{\"name\": \"glob\", \"arguments\": {\"pattern\": \"*.go\"}}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "find go files"}}, nil, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected recovered tool call, got %d", len(resp.Message.ToolCalls))
	}
	if resp.Message.Content != "" {
		t.Errorf("content should be cleared after tool-call recovery, got %q", resp.Message.Content)
	}
}

func TestOllamaChat_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "hi"}}, nil, nil)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !IsAuthError(err) {
		t.Errorf("expected AuthError, got %T: %v", err, err)
	}
}

func TestOllamaChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "hi"}}, nil, nil)
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if IsAuthError(err) {
		t.Error("500 should not classify as AuthError")
	}
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"Hel"},"done":false}
{"model":"qwen3:4b","message":{"role":"assistant","content":"lo"},"done":false}
{"model":"qwen3:4b","message":{"role":"assistant","content":""},"done":true,"eval_count":2}
`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	var tokens string
	var sawDone bool
	resp, err := c.ChatStream(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "hi"}}, nil, nil, func(ev StreamEvent) {
		switch ev.Kind {
		case KindToken:
			tokens += ev.Token
		case KindDone:
			sawDone = true
		}
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}
	if tokens != "Hello" {
		t.Errorf("streamed tokens = %q, want Hello", tokens)
	}
	if resp.Message.Content != "Hello" {
		t.Errorf("final content = %q, want Hello", resp.Message.Content)
	}
	if !sawDone {
		t.Error("expected KindDone event")
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}
