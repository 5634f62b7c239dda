package agent

import (
	"sync"

	"github.com/google/uuid"
)

// Session binds a conversation ID to its transcript. Reset starts a
// fresh conversation: new ID, transcript back to the lone system turn.
type Session struct {
	mu         sync.Mutex
	id         string
	transcript *Transcript
}

// NewSession creates a session with a fresh conversation ID.
func NewSession(systemPrompt string) *Session {
	return &Session{
		id:         uuid.NewString(),
		transcript: NewTranscript(systemPrompt),
	}
}

// ID returns the current conversation ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Transcript returns the session's transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Reset abandons the current conversation and starts a new one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.transcript.Reset()
}
