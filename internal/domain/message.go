package domain

import "time"

type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	MessageID string
	Content   string
	Timestamp time.Time
}

// OutboundKind tells a channel how to render an OutboundMessage.
type OutboundKind string

const (
	OutboundReplies OutboundKind = "replies" // structured replies, at most MaxRepliesPerSend
	OutboundTyping  OutboundKind = "typing"  // "working" indicator for the chat
	OutboundText    OutboundKind = "text"    // plain text line (prefix commands)
)

type OutboundMessage struct {
	Channel string
	ChatID  string
	ReplyTo string // inbound message ID, may be empty
	Kind    OutboundKind
	Replies []Reply
	Content string
}
