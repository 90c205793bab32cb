package bot

import (
	"context"

	"github.com/dayuer/chatgate/internal/bridge"
)

// EchoBot repeats the query back. Used for local development and tests.
type EchoBot struct{}

// NewEchoBot creates an EchoBot.
func NewEchoBot() *EchoBot { return &EchoBot{} }

// Reply echoes the query.
func (e *EchoBot) Reply(_ context.Context, query string, _ *bridge.Context) bridge.Reply {
	return bridge.Reply{Kind: bridge.ReplyKindText, Content: query}
}
