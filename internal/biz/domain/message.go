package domain

import "time"

// ChatType represents the chat type reported by the messaging platform
type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeP2P   ChatType = "p2p"
)

// Message represents a message entity
type Message struct {
	ID          string
	ChatID      string
	ChatType    ChatType
	ThreadID    string // empty unless the message belongs to a topic thread
	Content     string
	SenderID    string
	SenderType  string // user, app
	MentionsBot bool
	CreateTime  time.Time
}

// IsFromBot checks if the message is from the bot
func (m *Message) IsFromBot(botID string) bool {
	return botID != "" && m.SenderID == botID
}

// IsDirect reports whether the message arrived in a one-to-one chat
func (m *Message) IsDirect() bool {
	return m.ChatType == ChatTypeP2P
}

// ScopeKind identifies where a conversation lives
type ScopeKind string

const (
	ScopeDirect  ScopeKind = "direct"
	ScopeChannel ScopeKind = "channel"
	ScopeTopic   ScopeKind = "topic"
)

// Scope addresses a conversation: a direct chat with one peer, a whole
// group channel, or a single topic thread inside a channel.
type Scope struct {
	Kind     ScopeKind
	ChatID   string
	ThreadID string
	PeerID   string
}

// ScopeOf derives the conversation scope of a message. wholeChannel widens a
// topic message to its entire channel.
func ScopeOf(m *Message, wholeChannel bool) Scope {
	switch {
	case m.IsDirect():
		return Scope{Kind: ScopeDirect, ChatID: m.ChatID, PeerID: m.SenderID}
	case m.ThreadID != "" && !wholeChannel:
		return Scope{Kind: ScopeTopic, ChatID: m.ChatID, ThreadID: m.ThreadID}
	default:
		return Scope{Kind: ScopeChannel, ChatID: m.ChatID}
	}
}
