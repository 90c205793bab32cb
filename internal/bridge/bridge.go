package bridge

import (
	"context"
	"log"
)

// Bot generates replies for text queries. Implementations live in
// internal/bot; failures are reported as ReplyKindError replies.
type Bot interface {
	Reply(ctx context.Context, query string, c *Context) Reply
}

// VoiceConverter converts between audio files and text. Optional; channels
// that never see voice messages don't need one.
type VoiceConverter interface {
	VoiceToText(path string) Reply
	TextToVoice(text string) Reply
}

// Bridge routes pipeline requests to the configured collaborators.
type Bridge struct {
	bot   Bot
	voice VoiceConverter
}

// New creates a Bridge. voice may be nil.
func New(bot Bot, voice VoiceConverter) *Bridge {
	return &Bridge{bot: bot, voice: voice}
}

// FetchReply asks the bot backend for a reply to query.
func (b *Bridge) FetchReply(ctx context.Context, query string, c *Context) Reply {
	if b.bot == nil {
		log.Println("[Bridge] no bot configured")
		return Reply{Kind: ReplyKindError, Content: "no bot backend configured"}
	}
	return b.bot.Reply(ctx, query, c)
}

// FetchVoiceToText transcribes a voice file.
func (b *Bridge) FetchVoiceToText(path string) Reply {
	if b.voice == nil {
		return Reply{Kind: ReplyKindError, Content: "voice recognition not supported"}
	}
	return b.voice.VoiceToText(path)
}

// FetchTextToVoice synthesizes speech for text.
func (b *Bridge) FetchTextToVoice(text string) Reply {
	if b.voice == nil {
		return Reply{Kind: ReplyKindError, Content: "text to voice not supported"}
	}
	return b.voice.TextToVoice(text)
}
