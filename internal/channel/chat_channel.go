package channel

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/dispatch"
	"github.com/dayuer/chatgate/internal/session"
)

// referenceQuoteMark appears in messages quoting an earlier message; those
// are never treated as queries.
const referenceQuoteMark = "」\n- - - - - - -"

const sendRetries = 2

// ChatChannel is the platform-independent message engine behind every chat
// channel: it composes inbound platform events into contexts, schedules
// them per session through a dispatch.Engine, and runs each dequeued
// context through the generate → decorate → send pipeline.
type ChatChannel struct {
	name   string
	cfg    *config.Config
	bridge *bridge.Bridge
	store  session.Store
	sender Sender
	engine *dispatch.Engine

	// BotName and BotUserID identify the bot on the platform, used for
	// @-mention stripping and self-message filtering.
	BotName   string
	BotUserID string

	notSupport map[bridge.ReplyKind]bool
	sleep      func(time.Duration) // indirection for retry backoff in tests

	imageMu    sync.Mutex
	imageCache map[string]*bridge.ChatMessage
}

// NewChatChannel creates the channel core. sender delivers replies for the
// concrete platform; store may be nil when no conversation memory is wanted.
func NewChatChannel(name string, cfg *config.Config, br *bridge.Bridge, store session.Store, sender Sender) *ChatChannel {
	ch := &ChatChannel{
		name:   name,
		cfg:    cfg,
		bridge: br,
		store:  store,
		sender: sender,
		// Voice and raw image sending are opt-in per platform.
		notSupport: map[bridge.ReplyKind]bool{
			bridge.ReplyKindVoice: true,
			bridge.ReplyKindImage: true,
		},
		sleep:      time.Sleep,
		imageCache: make(map[string]*bridge.ChatMessage),
	}
	ch.engine = dispatch.NewEngine(dispatch.Config{
		ConcurrencyPerSession: cfg.Dispatch.ConcurrencyInSession,
		PoolSize:              cfg.Dispatch.HandlerPoolSize,
		CommandPrefix:         cfg.Dispatch.CommandPrefix,
		PollInterval:          time.Duration(cfg.Dispatch.PollIntervalMs) * time.Millisecond,
	}, ch.handle)
	return ch
}

// SetSupportedReplyKinds marks reply kinds the platform can transmit beyond
// the text-like defaults.
func (ch *ChatChannel) SetSupportedReplyKinds(kinds ...bridge.ReplyKind) {
	for _, k := range kinds {
		delete(ch.notSupport, k)
	}
}

// Engine exposes the dispatch engine (for cancellation and stats).
func (ch *ChatChannel) Engine() *dispatch.Engine { return ch.engine }

// Stop shuts down the scheduling core.
func (ch *ChatChannel) Stop() { ch.engine.Stop() }

// HandleInbound composes a platform event into a context and enqueues it.
// Messages that compose to nil are silently dropped.
func (ch *ChatChannel) HandleInbound(kind bridge.ContextKind, content string, msg *bridge.ChatMessage) {
	c := ch.Compose(kind, content, msg)
	if c == nil {
		return
	}
	ch.engine.Produce(c)
}

// Compose normalizes a raw inbound message: resolves session and receiver,
// applies group whitelists and nickname blacklists, strips trigger prefixes
// and @-mentions, and detects image-create commands. Returns nil when the
// message should produce no reply.
func (ch *ChatChannel) Compose(kind bridge.ContextKind, content string, msg *bridge.ChatMessage) *bridge.Context {
	c := bridge.NewContext(kind, content)
	c.OriginKind = kind
	c.Msg = msg
	return ch.compose(c, true)
}

// recompose re-enters composition with transcribed text, keeping the
// session/receiver already resolved for the voice message.
func (ch *ChatChannel) recompose(old *bridge.Context, content string) *bridge.Context {
	c := old.Clone()
	c.Kind = bridge.ContextKindText
	c.Content = content
	return ch.compose(c, false)
}

func (ch *ChatChannel) compose(c *bridge.Context, firstIn bool) *bridge.Context {
	chat := &ch.cfg.Chat
	msg := c.Msg
	if msg == nil {
		log.Printf("[%s] compose without raw message", ch.name)
		return nil
	}

	if firstIn {
		c.IsGroup = msg.IsGroup
		if c.IsGroup {
			groupName := msg.OtherUserNickname
			groupID := msg.OtherUserID
			ok := containsString(chat.GroupNameWhiteList, groupName) ||
				containsString(chat.GroupNameWhiteList, "ALL_GROUP") ||
				checkContain(groupName, chat.GroupNameKeywordWhiteList)
			if !ok {
				ch.debugf("no need reply, group not in whitelist: %s", groupName)
				return nil
			}
			c.SessionID = msg.ActualUserID
			if containsString(chat.GroupChatInOneSession, groupName) ||
				containsString(chat.GroupChatInOneSession, "ALL_GROUP") {
				c.SessionID = groupID
			}
			c.Receiver = groupID
		} else {
			c.SessionID = msg.OtherUserID
			c.Receiver = msg.OtherUserID
		}

		if msg.FromUserID == ch.BotUserID && ch.BotUserID != "" && !chat.TriggerBySelf {
			ch.debugf("self message skipped")
			return nil
		}
	}

	if c.Kind == bridge.ContextKindText {
		content := c.Content
		if firstIn && strings.Contains(content, referenceQuoteMark) {
			ch.debugf("reference query skipped")
			return nil
		}

		if c.IsGroup {
			matchPrefix, hasPrefix := checkPrefix(content, chat.GroupChatPrefix)
			matchContain := checkContain(content, chat.GroupChatKeyword)
			triggered := false
			if msg.ToUserID != msg.ActualUserID {
				if hasPrefix || matchContain {
					triggered = true
					if matchPrefix != "" {
						content = strings.TrimSpace(strings.Replace(content, matchPrefix, "", 1))
					}
				}
				if msg.IsAt {
					if ch.blacklisted(msg.ActualUserNickname) {
						return nil
					}
					log.Printf("[%s] receive group at", ch.name)
					if !chat.GroupAtOff {
						triggered = true
					}
					content = stripMention(content, ch.BotName)
					for _, at := range msg.AtList {
						content = stripMention(content, at)
					}
					if msg.SelfDisplayName != "" {
						content = stripMention(content, msg.SelfDisplayName)
					}
				}
			}
			if !triggered {
				if c.OriginKind == bridge.ContextKindVoice {
					log.Printf("[%s] group voice received but trigger prefix didn't match", ch.name)
				}
				return nil
			}
		} else {
			if ch.blacklisted(msg.FromUserNickname) {
				return nil
			}
			matchPrefix, hasPrefix := checkPrefix(content, chat.SingleChatPrefix)
			switch {
			case hasPrefix:
				if matchPrefix != "" {
					content = strings.TrimSpace(strings.Replace(content, matchPrefix, "", 1))
				}
			case c.OriginKind == bridge.ContextKindVoice:
				// Transcribed voice bypasses the trigger prefix.
			default:
				return nil
			}
		}

		content = strings.TrimSpace(content)
		if imgPrefix, ok := checkPrefix(content, chat.ImageCreatePrefix); ok && imgPrefix != "" {
			content = strings.TrimSpace(strings.Replace(content, imgPrefix, "", 1))
			c.Kind = bridge.ContextKindImageCreate
		}
		c.Content = content

		if c.DesireKind == "" && chat.AlwaysReplyVoice && !ch.notSupport[bridge.ReplyKindVoice] {
			c.DesireKind = bridge.ReplyKindVoice
		}
	} else if c.Kind == bridge.ContextKindVoice {
		if c.DesireKind == "" && chat.VoiceReplyVoice && !ch.notSupport[bridge.ReplyKindVoice] {
			c.DesireKind = bridge.ReplyKindVoice
		}
	}

	return c
}

// handle runs the pipeline for one dequeued context on a pool worker.
func (ch *ChatChannel) handle(ctx context.Context, c *bridge.Context) {
	if c == nil || c.Content == "" {
		return
	}
	ch.debugf("ready to handle context: %s", c)

	reply := ch.generateReply(ctx, c)
	if reply.Empty() {
		return
	}
	ch.debugf("ready to decorate reply: %s", reply)

	reply = ch.decorateReply(c, reply)
	if reply.Empty() {
		return
	}
	ch.sendReply(c, reply)
}

// generateReply dispatches the context to the bot backend by kind. Voice
// input is transcribed and re-enters composition as text.
func (ch *ChatChannel) generateReply(ctx context.Context, c *bridge.Context) bridge.Reply {
	switch c.Kind {
	case bridge.ContextKindText:
		if strings.HasPrefix(c.Content, ch.cfg.Dispatch.CommandPrefix) {
			return ch.handleCommand(c)
		}
		return ch.bridge.FetchReply(ctx, c.Content, c)

	case bridge.ContextKindImageCreate:
		return ch.bridge.FetchReply(ctx, c.Content, c)

	case bridge.ContextKindVoice:
		reply := ch.bridge.FetchVoiceToText(c.Content)
		if reply.Kind != bridge.ReplyKindText {
			return reply
		}
		nc := ch.recompose(c, reply.Content)
		if nc == nil {
			return bridge.Reply{}
		}
		return ch.generateReply(ctx, nc)

	case bridge.ContextKindImage:
		// Keep the image around so a later text command can refer to it.
		ch.imageMu.Lock()
		ch.imageCache[c.SessionID] = c.Msg
		ch.imageMu.Unlock()
		return bridge.Reply{}

	case bridge.ContextKindSharing, bridge.ContextKindFile, bridge.ContextKindFunction:
		return bridge.Reply{}

	default:
		log.Printf("[%s] unknown context kind: %s", ch.name, c.Kind)
		return bridge.Reply{}
	}
}

// handleCommand executes built-in control commands.
func (ch *ChatChannel) handleCommand(c *bridge.Context) bridge.Reply {
	cmd := strings.TrimSpace(strings.TrimPrefix(c.Content, ch.cfg.Dispatch.CommandPrefix))
	switch cmd {
	case "清除记忆", "clear":
		if ch.store != nil {
			ch.store.Clear(c.SessionID)
		}
		return bridge.Reply{Kind: bridge.ReplyKindInfo, Content: "memory cleared"}
	case "清除所有", "clearall":
		if ch.store != nil {
			ch.store.ClearAll()
		}
		return bridge.Reply{Kind: bridge.ReplyKindInfo, Content: "all memory cleared"}
	default:
		return bridge.Reply{Kind: bridge.ReplyKindError, Content: "unknown command: " + cmd}
	}
}

// decorateReply applies presentation rules: unsupported kinds become
// errors, text gets mention and prefix/suffix treatment, errors and infos
// get an annotation banner, desired voice output triggers synthesis.
func (ch *ChatChannel) decorateReply(c *bridge.Context, reply bridge.Reply) bridge.Reply {
	if reply.Kind == "" {
		return bridge.Reply{}
	}
	chat := &ch.cfg.Chat
	desire := c.DesireKind

	if ch.notSupport[reply.Kind] {
		log.Printf("[%s] reply kind not supported: %s", ch.name, reply.Kind)
		reply = bridge.Reply{
			Kind:    bridge.ReplyKindError,
			Content: "unsupported reply kind: " + reply.Kind.String(),
		}
	}

	switch reply.Kind {
	case bridge.ReplyKindText, bridge.ReplyKindTextForce:
		if reply.Kind == bridge.ReplyKindText &&
			desire == bridge.ReplyKindVoice && !ch.notSupport[bridge.ReplyKindVoice] {
			return ch.decorateReply(c, ch.bridge.FetchTextToVoice(reply.Content))
		}
		text := reply.Content
		if c.IsGroup {
			if !c.NoNeedAt && c.Msg != nil && c.Msg.ActualUserNickname != "" {
				text = "@" + c.Msg.ActualUserNickname + "\n" + strings.TrimSpace(text)
			}
			text = chat.GroupChatReplyPrefix + text + chat.GroupChatReplySuffix
		} else {
			text = chat.SingleChatReplyPrefix + text + chat.SingleChatReplySuffix
		}
		reply.Kind = bridge.ReplyKindText
		reply.Content = text

	case bridge.ReplyKindError, bridge.ReplyKindInfo:
		reply.Content = "[" + reply.Kind.String() + "]\n" + reply.Content

	case bridge.ReplyKindImageURL, bridge.ReplyKindVoice, bridge.ReplyKindImage,
		bridge.ReplyKindFile, bridge.ReplyKindVideo, bridge.ReplyKindVideoURL:
		// Media replies pass through untouched.

	default:
		log.Printf("[%s] unknown reply kind: %s", ch.name, reply.Kind)
		return bridge.Reply{}
	}

	if desire != "" && desire != reply.Kind &&
		reply.Kind != bridge.ReplyKindError && reply.Kind != bridge.ReplyKindInfo {
		log.Printf("[%s] desired reply kind %s, got %s", ch.name, desire, reply.Kind)
	}
	return reply
}

// sendReply transmits via the platform sender, retrying transient failures
// with linear backoff. ErrNotSupported aborts immediately.
func (ch *ChatChannel) sendReply(c *bridge.Context, reply bridge.Reply) {
	for attempt := 0; ; attempt++ {
		err := ch.sender.Send(reply, c)
		if err == nil {
			return
		}
		log.Printf("[%s] send error: %v", ch.name, err)
		if errors.Is(err, ErrNotSupported) {
			return
		}
		if attempt >= sendRetries {
			log.Printf("[%s] send failed after %d retries, dropping reply, session=%s",
				ch.name, sendRetries, c.SessionID)
			return
		}
		ch.sleep(time.Duration(3*(attempt+1)) * time.Second)
	}
}

// CachedImage returns the raw message of the last image received in a
// session, if any.
func (ch *ChatChannel) CachedImage(sessionID string) *bridge.ChatMessage {
	ch.imageMu.Lock()
	defer ch.imageMu.Unlock()
	return ch.imageCache[sessionID]
}

func (ch *ChatChannel) blacklisted(nickname string) bool {
	if nickname != "" && containsString(ch.cfg.Chat.NickNameBlackList, nickname) {
		log.Printf("[%s] nickname %q in blacklist, ignore", ch.name, nickname)
		return true
	}
	return false
}

func (ch *ChatChannel) debugf(format string, args ...any) {
	if ch.cfg.Debug {
		log.Printf("["+ch.name+"] "+format, args...)
	}
}

// stripMention removes "@name" mentions followed by a space or the
// four-per-em space some platforms insert after mentions.
func stripMention(content, name string) string {
	if name == "" {
		return content
	}
	re, err := regexp.Compile("@" + regexp.QuoteMeta(name) + "( | )")
	if err != nil {
		return content
	}
	return re.ReplaceAllString(content, "")
}
