// Package api implements the optional HTTP surface: a chat endpoint,
// archived-history views, a live event feed, and health checks.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sableagent/sable/internal/agent"
	"github.com/sableagent/sable/internal/buildinfo"
	"github.com/sableagent/sable/internal/events"
	"github.com/sableagent/sable/internal/history"
)

// writeJSON encodes v to w, logging failures at debug level. Errors
// here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	loop    *agent.Loop
	session *agent.Session
	store   *history.Store
	bus     *events.Bus
	logger  *slog.Logger
	server  *http.Server

	// runMu serializes chat requests: the session's transcript is one
	// conversation, and interleaved runs would corrupt its ordering.
	runMu sync.Mutex
}

// NewServer creates an API server. store and bus may be nil; the
// endpoints that need them answer 503.
func NewServer(address string, port int, loop *agent.Loop, session *agent.Session, store *history.Store, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		loop:    loop,
		session: session,
		store:   store,
		bus:     bus,
		logger:  logger.With("component", "api"),
	}
}

// Handler builds the route table. Exposed separately so tests can mount
// it on httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/session/reset", s.handleSessionReset)

	mux.HandleFunc("GET /v1/history", s.handleHistoryList)
	mux.HandleFunc("GET /v1/history/{id}", s.handleHistoryGet)

	mux.HandleFunc("GET /v1/events", s.handleEvents)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving. Blocks until the listener fails or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: /v1/events holds its connection open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("starting API server", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Sable",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the body for POST /v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply for POST /v1/chat.
type ChatResponse struct {
	Response       string `json:"response"`
	Model          string `json:"model"`
	ConversationID string `json:"conversation_id"`
	Iterations     int    `json:"iterations"`
	Exhausted      bool   `json:"exhausted,omitempty"`
	ExhaustReason  string `json:"exhaust_reason,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	s.runMu.Lock()
	res, err := s.loop.Run(r.Context(), s.session, req.Message, nil)
	s.runMu.Unlock()
	if err != nil {
		s.logger.Error("chat request failed", "error", err)
		s.errorResponse(w, http.StatusBadGateway, "agent error: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		Response:       res.Content,
		Model:          res.Model,
		ConversationID: s.session.ID(),
		Iterations:     res.Iterations,
		Exhausted:      res.Exhausted,
		ExhaustReason:  res.ExhaustReason,
	}, s.logger)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	s.runMu.Lock()
	s.session.Reset()
	id := s.session.ID()
	s.runMu.Unlock()

	s.logger.Info("session reset via API", "conversation", id)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok", "conversation_id": id}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
