// Package session implements per-conversation memory: a rolling message
// history keyed by session id, trimmed to a turn budget and expired after
// idle time. Stores sit behind the bot backends; the dispatch core itself
// keeps no persistent state.
package session

import "time"

// Message is a single conversation message in LLM chat format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds one conversation's message history.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddQuery appends a user message.
func (s *Session) AddQuery(content string) {
	s.Messages = append(s.Messages, Message{Role: "user", Content: content})
	s.UpdatedAt = time.Now()
}

// AddReply appends an assistant message.
func (s *Session) AddReply(content string) {
	s.Messages = append(s.Messages, Message{Role: "assistant", Content: content})
	s.UpdatedAt = time.Now()
}

// Trim keeps at most maxTurns query/reply pairs, dropping the oldest.
func (s *Session) Trim(maxTurns int) {
	if maxTurns <= 0 {
		return
	}
	max := maxTurns * 2
	if len(s.Messages) > max {
		s.Messages = s.Messages[len(s.Messages)-max:]
	}
}

// Store is the session persistence contract. Implementations are safe for
// concurrent use by pool workers handling different messages of the same
// session.
type Store interface {
	// Get returns the session for id, creating an empty one if absent or
	// expired.
	Get(id string) *Session

	// Save persists a session after mutation.
	Save(s *Session)

	// Clear discards the session's history.
	Clear(id string)

	// ClearAll discards every session.
	ClearAll()
}
