// Package bridge defines the message types exchanged between channel
// adapters and bot backends, plus the Bridge that routes requests to the
// configured backend.
package bridge

import "fmt"

// ContextKind is the kind of an inbound message.
type ContextKind string

const (
	ContextKindText         ContextKind = "TEXT"
	ContextKindVoice        ContextKind = "VOICE"
	ContextKindImage        ContextKind = "IMAGE"
	ContextKindFile         ContextKind = "FILE"
	ContextKindVideo        ContextKind = "VIDEO"
	ContextKindSharing      ContextKind = "SHARING"
	ContextKindImageCreate  ContextKind = "IMAGE_CREATE"
	ContextKindFunction     ContextKind = "FUNCTION"
	ContextKindAcceptFriend ContextKind = "ACCEPT_FRIEND"
	ContextKindJoinGroup    ContextKind = "JOIN_GROUP"
	ContextKindPatpat       ContextKind = "PATPAT"
	ContextKindExitGroup    ContextKind = "EXIT_GROUP"
)

func (k ContextKind) String() string { return string(k) }

// ChatMessage is the channel-specific raw message an inbound Context was
// built from. Adapters fill in whatever identifiers their platform exposes;
// in a group chat FromUserID is typically the group while ActualUserID is
// the member who spoke.
type ChatMessage struct {
	MsgID              string
	CreateTime         int64
	FromUserID         string
	FromUserNickname   string
	ToUserID           string
	ToUserNickname     string
	OtherUserID        string // the peer: user in private chat, group in group chat
	OtherUserNickname  string
	ActualUserID       string
	ActualUserNickname string
	SelfDisplayName    string
	IsGroup            bool
	IsAt               bool
	AtList             []string
	Raw                any // platform payload, kept for the sender
}

// Context is one unit of work flowing through a chat channel: the message
// itself plus everything composition resolved about it.
type Context struct {
	Kind    ContextKind
	Content string

	SessionID  string
	Receiver   string
	IsGroup    bool
	OriginKind ContextKind // kind before any voice-to-text rewrite
	DesireKind ReplyKind   // reply kind the caller asked for ("" = any)
	NoNeedAt   bool        // suppress @-mention in group replies

	Msg   *ChatMessage
	Extra map[string]any // side-channel attributes set by adapters
}

// NewContext creates a Context of the given kind.
func NewContext(kind ContextKind, content string) *Context {
	return &Context{Kind: kind, Content: content, Extra: make(map[string]any)}
}

// Clone returns a shallow copy sharing Msg and Extra, used when a voice
// message is transcribed and re-enters composition as text.
func (c *Context) Clone() *Context {
	cp := *c
	return &cp
}

func (c *Context) String() string {
	return fmt.Sprintf("Context(kind=%s, session=%s, content=%s)", c.Kind, c.SessionID, c.Content)
}
