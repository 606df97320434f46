package chat

import "github.com/omochice/trovochat/pkg/protocol"

const (
	DefaultLocale  = "en-US"
	DefaultChatURL = "https://trovo.live/chat/"

	conversationID = "trovo"
)

// Identity describes the bot account and channel activities are addressed to.
type Identity struct {
	BotName string
	BotUID  uint64
	Channel string
	Locale  string
	ChatURL string
}

// DefaultIdentity returns an Identity with the default locale and chat URL.
func DefaultIdentity() Identity {
	return Identity{
		Locale:  DefaultLocale,
		ChatURL: DefaultChatURL,
	}
}

// ServiceURL returns the channel chat page URL.
func (id Identity) ServiceURL() string {
	return id.ChatURL + id.Channel
}

// Verdict is the outcome of building an activity from a decoded message.
type Verdict int

const (
	VerdictEmit Verdict = iota
	VerdictNoChat
	VerdictHistory
	VerdictSelf
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictEmit:
		return "emit"
	case VerdictNoChat:
		return "no_chat"
	case VerdictHistory:
		return "history"
	case VerdictSelf:
		return "self"
	default:
		return "unknown"
	}
}

// Builder turns decoded messages into activities for one identity.
type Builder struct {
	id Identity
}

// NewBuilder creates a Builder for id.
func NewBuilder(id Identity) *Builder {
	return &Builder{id: id}
}

// Identity returns the identity the builder addresses activities to.
func (b *Builder) Identity() Identity {
	return b.id
}

// Build converts msg into an activity. Messages without a chat, history
// replays and messages posted by the bot itself are suppressed; only
// VerdictEmit comes with a non-nil activity.
func (b *Builder) Build(msg *protocol.Message) (*Activity, Verdict) {
	if msg == nil || msg.Chat == nil {
		return nil, VerdictNoChat
	}
	c := msg.Chat
	if c.Channel.IsHistory() {
		return nil, VerdictHistory
	}
	if b.id.BotName != "" && c.Channel.DisplayName == b.id.BotName {
		return nil, VerdictSelf
	}

	typ := TypeMessage
	if c.IsEvent() {
		typ = TypeEvent
	}
	return &Activity{
		Type:         typ,
		ID:           conversationID,
		ChannelID:    b.id.Channel,
		Conversation: Conversation{ID: conversationID},
		From:         Account{ID: c.SenderID, Name: c.SenderName},
		Recipient:    Account{ID: b.id.BotUID, Name: b.id.BotName},
		Text:         c.Text,
		Value:        c.Value,
		Entities:     c.Mentions,
		Timestamp:    c.TimestampMS,
		Locale:       b.id.Locale,
		ServiceURL:   b.id.ServiceURL(),
		ChannelData:  c.Channel,
	}, VerdictEmit
}
