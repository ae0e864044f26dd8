// Package session defines the normalized conversation model shared by every
// provider: a Session is an ordered sequence of turns, and a turn is either a
// user request, a streamed assistant response, or a tool invocation. All
// provider-specific event vocabularies are translated into this model before
// anything else sees them.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is one conversation. It is owned by a Store; the engine works on a
// snapshot, mutates it in memory during a streaming cycle, and hands it back
// with Put after every delta so concurrent readers observe progress.
type Session struct {
	ID         string      `json:"id"`
	Turns      Turns       `json:"turns"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Provider   string      `json:"provider,omitempty"`
	ModelID    string      `json:"modelId,omitempty"`
	TokenUsage *TokenUsage `json:"tokenUsage,omitempty"`
}

// New creates an empty session. A zero id is replaced with a random UUID.
func New(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the UpdatedAt timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// LastResponse returns the most recent response turn, or nil when the session
// has none. While a stream is in flight this is the open turn deltas apply to.
func (s *Session) LastResponse() *ResponseTurn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if turn, ok := s.Turns[i].(*ResponseTurn); ok {
			return turn
		}
	}
	return nil
}

// ToolTurn returns the tool turn with the given use id, or nil.
func (s *Session) ToolTurn(useID string) *ToolTurn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if turn, ok := s.Turns[i].(*ToolTurn); ok && turn.UseID == useID {
			return turn
		}
	}
	return nil
}

// NewMessageID returns a fresh message id for request/response turns.
func NewMessageID() string {
	return uuid.NewString()
}
