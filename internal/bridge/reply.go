package bridge

import "fmt"

// ReplyKind is the kind of an outbound reply.
type ReplyKind string

const (
	ReplyKindText      ReplyKind = "TEXT"
	ReplyKindVoice     ReplyKind = "VOICE"
	ReplyKindImage     ReplyKind = "IMAGE"
	ReplyKindImageURL  ReplyKind = "IMAGE_URL"
	ReplyKindVideoURL  ReplyKind = "VIDEO_URL"
	ReplyKindFile      ReplyKind = "FILE"
	ReplyKindVideo     ReplyKind = "VIDEO"
	ReplyKindTextForce ReplyKind = "TEXT_" // text that must not be converted to voice
	ReplyKindInfo      ReplyKind = "INFO"
	ReplyKindError     ReplyKind = "ERROR"
)

func (k ReplyKind) String() string { return string(k) }

// Reply is a bot backend's answer to one Context. Backends report failures
// as ReplyKindError replies, never as Go errors crossing the bridge.
type Reply struct {
	Kind    ReplyKind
	Content string
}

// Empty reports whether the reply carries nothing to send.
func (r Reply) Empty() bool { return r.Kind == "" || r.Content == "" }

func (r Reply) String() string {
	return fmt.Sprintf("Reply(kind=%s, content=%s)", r.Kind, r.Content)
}
