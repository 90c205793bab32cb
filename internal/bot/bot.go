// Package bot provides the bot backends a chat channel can route replies
// through. Backends implement bridge.Bot and report failures as ERROR
// replies; errors never cross the bridge boundary as Go errors.
package bot

import (
	"fmt"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/session"
)

// New creates the bot backend selected by cfg.Type.
func New(cfg config.BotConfig, store session.Store) (bridge.Bot, error) {
	switch cfg.Type {
	case "", "openai":
		return NewOpenAIBot(cfg, store), nil
	case "echo":
		return NewEchoBot(), nil
	default:
		return nil, fmt.Errorf("unknown bot type: %s", cfg.Type)
	}
}
