package api

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/sableagent/sable/internal/history"
)

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "history not configured")
		return
	}

	limit := parseIntParam(r, "limit", 20)
	convs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history list failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list conversations: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"conversations": convs,
		"count":         len(convs),
	}, s.logger)
}

// handleHistoryGet renders one archived conversation as an HTML page.
// Assistant turns are markdown and go through goldmark; everything else
// is escaped verbatim.
func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "history not configured")
		return
	}

	id := r.PathValue("id")
	msgs, err := s.store.Messages(r.Context(), id)
	if err != nil {
		s.logger.Error("history get failed", "conversation", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "get conversation: "+err.Error())
		return
	}
	if len(msgs) == 0 {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	page, err := renderTranscriptHTML(id, msgs)
	if err != nil {
		s.logger.Error("transcript render failed", "conversation", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "render transcript")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

func renderTranscriptHTML(id string, msgs []history.Message) (string, error) {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Conversation `)
	b.WriteString(html.EscapeString(shortID(id)))
	b.WriteString(`</title>
<style>
body { font-family: sans-serif; font-size: 14px; line-height: 1.5; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
.turn { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 6px; }
.turn.user { background: #eef3fb; }
.turn.assistant { background: #f5f5f5; }
.turn.tool, .turn.system { background: #fbf7ee; font-family: monospace; white-space: pre-wrap; font-size: 12px; }
.role { font-weight: bold; font-size: 12px; text-transform: uppercase; color: #666; margin-bottom: 0.25rem; }
</style></head><body>
`)
	fmt.Fprintf(&b, "<h1>Conversation %s</h1>\n", html.EscapeString(shortID(id)))

	for _, m := range msgs {
		fmt.Fprintf(&b, `<div class="turn %s"><div class="role">%s</div>`,
			html.EscapeString(m.Role), html.EscapeString(m.Role))
		if m.Role == "assistant" {
			var md bytes.Buffer
			if err := goldmark.Convert([]byte(m.Content), &md); err != nil {
				return "", err
			}
			b.Write(md.Bytes())
		} else {
			b.WriteString(html.EscapeString(m.Content))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body></html>\n")
	return b.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
