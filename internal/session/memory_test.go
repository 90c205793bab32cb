package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(3600, 20)

	s := store.Get("u1")
	s.AddQuery("hi")
	s.AddReply("hello")
	store.Save(s)

	again := store.Get("u1")
	require.Len(t, again.Messages, 2)
	assert.Equal(t, "user", again.Messages[0].Role)
	assert.Equal(t, "hi", again.Messages[0].Content)
	assert.Equal(t, "assistant", again.Messages[1].Role)
}

func TestTrimKeepsRecentTurns(t *testing.T) {
	s := &Session{ID: "u1"}
	for i := 0; i < 30; i++ {
		s.AddQuery("q")
		s.AddReply("a")
	}
	s.Trim(5)
	assert.Len(t, s.Messages, 10)
	// Remaining history still alternates user/assistant.
	assert.Equal(t, "user", s.Messages[0].Role)
	assert.Equal(t, "assistant", s.Messages[9].Role)
}

func TestExpiry(t *testing.T) {
	store := NewMemoryStore(1, 20)

	s := store.Get("u1")
	s.AddQuery("hi")
	store.Save(s)

	// Force the entry past its window.
	store.mu.Lock()
	store.sessions["u1"].touched = time.Now().Add(-2 * time.Second)
	store.mu.Unlock()

	fresh := store.Get("u1")
	assert.Empty(t, fresh.Messages, "expired session must reset")
}

func TestClear(t *testing.T) {
	store := NewMemoryStore(3600, 20)

	s := store.Get("u1")
	s.AddQuery("hi")
	store.Save(s)
	store.Get("u2")

	store.Clear("u1")
	assert.Empty(t, store.Get("u1").Messages)
	assert.Equal(t, 2, store.Len())

	store.ClearAll()
	assert.Equal(t, 0, store.Len())
}
